package transporthttp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ttracx/vibeanalytics/internal/billing"
	"github.com/ttracx/vibeanalytics/internal/config"
	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/ingest"
	spg "github.com/ttracx/vibeanalytics/internal/storage/postgres"
)

// ServiceName names the server in traces.
const ServiceName = "vibeanalytics"

// webhookMaxBytes bounds provider payloads independently of MaxBodyBytes.
const webhookMaxBytes = 1 << 20

//go:embed assets/tracker.js
var trackerJS []byte

// Store is the persistence the HTTP handlers read and write directly.
// Ingestion and billing go through their services.
type Store interface {
	Ready(ctx context.Context) error
	MembershipForUser(ctx context.Context, userID string) (domain.Membership, error)
	TeamByAPIKey(ctx context.Context, key string) (domain.Team, error)
	TeamHasProject(ctx context.Context, teamID, projectID string) (bool, error)
	QueryStats(ctx context.Context, projectID string, days int, now time.Time) (spg.Stats, error)
	ExportEvents(ctx context.Context, projectID string, since time.Time, limit int) ([]domain.Event, error)
	ListAPIKeys(ctx context.Context, teamID string) ([]domain.APIKey, error)
	CreateAPIKey(ctx context.Context, teamID, name string) (domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, teamID, keyID string) error
}

type ServerDeps struct {
	Cfg      config.Config
	Ingestor *ingest.Ingestor
	Billing  *billing.Service
	Store    Store
	Now      func() time.Time
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeStatus maps a body decoding error to a status and message.
func decodeStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Request body too large"
	}
	return http.StatusBadRequest, "Invalid JSON body"
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.Ready(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not reachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Ingestion ---

type trackResp struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

func (d *ServerDeps) HandleTrack(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)

	var req domain.TrackRequest
	if err := decodeJSON(r, &req); err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return
	}

	ev, err := d.Ingestor.Track(r.Context(), req, ingest.Meta{
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMissingRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ingest.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "Project not found")
		return
	default:
		writeInternal(w, r, "Failed to track event", err)
		return
	}
	writeJSON(w, http.StatusOK, trackResp{Success: true, EventID: ev.ID})
}

func (d *ServerDeps) HandleTrackerJS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/javascript; charset=utf-8")
	h.Set("Cache-Control", "public, max-age=3600")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trackerJS)
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.HandleHealthz)
	mux.HandleFunc("GET /readyz", d.HandleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /tracker.js", d.HandleTrackerJS)

	var track http.Handler = http.HandlerFunc(d.HandleTrack)
	track = BodyLimit(d.Cfg.MaxBodyBytes)(track)
	track = OpenCORS("POST, OPTIONS")(track)
	mux.Handle("POST /api/track", track)
	mux.Handle("OPTIONS /api/track", track)

	readLimit := RateLimit(d.Cfg.ReadRateLimitPerMin)
	mux.Handle("GET /api/stats", readLimit(d.Authenticate(http.HandlerFunc(d.HandleStats))))
	mux.Handle("GET /api/export", readLimit(d.Authenticate(http.HandlerFunc(d.HandleExport))))
	mux.Handle("GET /api/team", d.Authenticate(http.HandlerFunc(d.HandleTeam)))

	write := func(h http.HandlerFunc) http.Handler {
		return BodyLimit(d.Cfg.MaxBodyBytes)(RequireJSON(d.Authenticate(h)))
	}
	mux.Handle("POST /api/api-keys", write(d.HandleCreateAPIKey))
	mux.Handle("DELETE /api/api-keys", write(d.HandleDeleteAPIKey))
	mux.Handle("POST /api/billing/checkout", write(d.HandleCheckout))

	mux.Handle("POST /api/billing/webhook", BodyLimit(webhookMaxBytes)(http.HandlerFunc(d.HandleBillingWebhook)))

	return otelhttp.NewHandler(Instrument(Recover(mux)), ServiceName)
}
