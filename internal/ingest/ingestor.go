package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/geo"
	"github.com/ttracx/vibeanalytics/internal/idgen"
	"github.com/ttracx/vibeanalytics/internal/useragent"
)

// ErrProjectNotFound is returned when the submission names no existing project.
var ErrProjectNotFound = errors.New("project not found")

// Store is the persistence the ingestion path needs.
type Store interface {
	ProjectExists(ctx context.Context, projectID string) (bool, error)
	InsertEvent(ctx context.Context, ev *domain.Event) error
}

// Meta is request context taken from headers, not from the body.
type Meta struct {
	UserAgent string
	IP        string
}

var eventsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeanalytics",
	Name:      "events_tracked_total",
	Help:      "Track submissions by outcome.",
}, []string{"result"})

// Ingestor turns one submission into exactly one stored event. There is no
// queue, dedup or batching; every call is an independent single-row write.
type Ingestor struct {
	store   Store
	locator geo.Locator
	now     func() time.Time
}

func NewIngestor(store Store, locator geo.Locator, now func() time.Time) *Ingestor {
	if locator == nil {
		locator = geo.Nop{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ingestor{store: store, locator: locator, now: now}
}

func (ig *Ingestor) Track(ctx context.Context, req domain.TrackRequest, meta Meta) (*domain.Event, error) {
	if err := domain.ValidateTrack(&req); err != nil {
		eventsTracked.WithLabelValues("invalid").Inc()
		return nil, err
	}

	exists, err := ig.store.ProjectExists(ctx, req.ProjectID)
	if err != nil {
		eventsTracked.WithLabelValues("error").Inc()
		return nil, err
	}
	if !exists {
		eventsTracked.WithLabelValues("not_found").Inc()
		return nil, ErrProjectNotFound
	}

	ev := ig.build(req, meta)
	if err := ig.store.InsertEvent(ctx, ev); err != nil {
		eventsTracked.WithLabelValues("error").Inc()
		return nil, err
	}
	eventsTracked.WithLabelValues("ok").Inc()

	log.WithFields(log.Fields{
		"project_id": ev.ProjectID,
		"event_id":   ev.ID,
		"name":       ev.Name,
	}).Debug("Tracked event.")
	return ev, nil
}

func (ig *Ingestor) build(req domain.TrackRequest, meta Meta) *domain.Event {
	class := useragent.Classify(meta.UserAgent)
	loc := ig.locator.Lookup(meta.IP)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = idgen.NewSessionID()
	}
	props := req.Properties
	if props == nil {
		props = map[string]any{}
	}
	var referrer string
	if req.Referrer != nil {
		referrer = *req.Referrer
	}

	ev := &domain.Event{
		ID:         idgen.NewEventID(),
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		SessionID:  sessionID,
		UserID:     req.UserID,
		Properties: props,
		URL:        req.URL,
		Referrer:   referrer,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
		Device:     class.Device,
		Browser:    class.Browser,
		OS:         class.OS,
		Country:    loc.Country,
		City:       loc.City,
		Bot:        class.Bot,
		Timestamp:  ig.now(),
	}
	if req.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, req.Timestamp); err == nil {
			t = t.UTC()
			ev.SentAt = &t
		}
	}
	return ev
}
