package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/geo"
)

type memStore struct {
	mu        sync.Mutex
	projects  map[string]bool
	events    []domain.Event
	insertErr error
}

func (m *memStore) ProjectExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id], nil
}

func (m *memStore) InsertEvent(_ context.Context, ev *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, *ev)
	return nil
}

type fixedLocator geo.Location

func (f fixedLocator) Lookup(string) geo.Location { return geo.Location(f) }

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(store *memStore) *Ingestor {
	return NewIngestor(store, fixedLocator{Country: "DE", City: "Berlin"}, func() time.Time { return fixedNow })
}

func TestTrackPersistsOneEvent(t *testing.T) {
	store := &memStore{projects: map[string]bool{"proj_1": true}}
	ig := newTestIngestor(store)

	ref := "https://news.example.com"
	ev, err := ig.Track(context.Background(), domain.TrackRequest{
		ProjectID:  "proj_1",
		Name:       "signup",
		SessionID:  "va_session",
		UserID:     "va_user",
		Properties: map[string]any{"plan": "pro"},
		URL:        "https://app.example.com/signup",
		Referrer:   &ref,
		Timestamp:  "2025-03-01T11:59:58.123Z",
	}, Meta{UserAgent: "Mozilla/5.0 (Linux; Android 10) ... Chrome/90", IP: "203.0.113.9"})
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	got := store.events[0]
	assert.Equal(t, ev.ID, got.ID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "signup", got.Name)
	assert.Equal(t, "proj_1", got.ProjectID)
	assert.Equal(t, "va_session", got.SessionID)
	assert.Equal(t, "mobile", got.Device)
	assert.Equal(t, "Chrome", got.Browser)
	assert.Equal(t, "Android", got.OS)
	assert.Equal(t, "DE", got.Country)
	assert.Equal(t, "Berlin", got.City)
	assert.Equal(t, ref, got.Referrer)
	assert.Equal(t, fixedNow, got.Timestamp)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 123*time.Millisecond, got.SentAt.Sub(time.Date(2025, 3, 1, 11, 59, 58, 0, time.UTC)))
}

func TestTrackRejectsMissingFields(t *testing.T) {
	store := &memStore{projects: map[string]bool{"proj_1": true}}
	ig := newTestIngestor(store)

	for _, req := range []domain.TrackRequest{
		{Name: "signup"},
		{ProjectID: "proj_1"},
		{ProjectID: "proj_1", Name: "  "},
	} {
		_, err := ig.Track(context.Background(), req, Meta{})
		assert.ErrorIs(t, err, domain.ErrMissingRequired)
	}
	assert.Empty(t, store.events)
}

func TestTrackUnknownProject(t *testing.T) {
	store := &memStore{projects: map[string]bool{}}
	ig := newTestIngestor(store)

	_, err := ig.Track(context.Background(), domain.TrackRequest{ProjectID: "nope", Name: "x"}, Meta{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Empty(t, store.events)
}

func TestTrackGeneratesSessionID(t *testing.T) {
	store := &memStore{projects: map[string]bool{"p": true}}
	ig := newTestIngestor(store)

	for i := 0; i < 2; i++ {
		_, err := ig.Track(context.Background(), domain.TrackRequest{ProjectID: "p", Name: "page_view"}, Meta{})
		require.NoError(t, err)
	}
	require.Len(t, store.events, 2)
	assert.NotEmpty(t, store.events[0].SessionID)
	assert.NotEmpty(t, store.events[1].SessionID)
	assert.NotEqual(t, store.events[0].SessionID, store.events[1].SessionID)
}

func TestTrackDefaultsAndUnknownAgent(t *testing.T) {
	store := &memStore{projects: map[string]bool{"p": true}}
	ig := NewIngestor(store, nil, nil)

	ev, err := ig.Track(context.Background(), domain.TrackRequest{ProjectID: "p", Name: "x", Timestamp: "yesterday"}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, ev.Properties)
	assert.Equal(t, "desktop", ev.Device)
	assert.Equal(t, "unknown", ev.Browser)
	assert.Equal(t, "unknown", ev.OS)
	assert.Nil(t, ev.SentAt)
	assert.Empty(t, ev.Country)
}

func TestTrackStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	store := &memStore{projects: map[string]bool{"p": true}, insertErr: boom}
	ig := newTestIngestor(store)

	_, err := ig.Track(context.Background(), domain.TrackRequest{ProjectID: "p", Name: "x"}, Meta{})
	assert.ErrorIs(t, err, boom)
}

func TestTrackStoresValuesAsSubmitted(t *testing.T) {
	store := &memStore{projects: map[string]bool{"proj_1": true}}
	ig := newTestIngestor(store)

	longURL := "https://shop.example.com/search?q=" + strings.Repeat("a", 6000)
	ev, err := ig.Track(context.Background(), domain.TrackRequest{
		ProjectID: "proj_1",
		Name:      " Signup ",
		SessionID: " s1 ",
		UserID:    "u1 ",
		URL:       longURL,
	}, Meta{})
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	assert.Equal(t, " Signup ", store.events[0].Name)
	assert.Equal(t, " s1 ", store.events[0].SessionID)
	assert.Equal(t, "u1 ", store.events[0].UserID)
	assert.Equal(t, longURL, store.events[0].URL)
	assert.Equal(t, ev.ID, store.events[0].ID)
}

func TestTrackProjectIDIsNotTrimmed(t *testing.T) {
	store := &memStore{projects: map[string]bool{"proj_1": true}}
	ig := newTestIngestor(store)

	_, err := ig.Track(context.Background(), domain.TrackRequest{ProjectID: "proj_1 ", Name: "x"}, Meta{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Empty(t, store.events)
}
