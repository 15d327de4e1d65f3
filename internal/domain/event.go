package domain

import "time"

// Reserved event names emitted by the tracker.
const (
	EventPageView = "page_view"
	EventIdentify = "$identify"
)

// Event is one recorded user action. It is written once and never updated.
type Event struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId"`
	Name       string         `json:"name"`
	SessionID  string         `json:"sessionId"`
	UserID     string         `json:"userId,omitempty"`
	Properties map[string]any `json:"properties"`
	URL        string         `json:"url,omitempty"`
	Referrer   string         `json:"referrer,omitempty"`
	UserAgent  string         `json:"userAgent"`
	IP         string         `json:"ip"`
	Device     string         `json:"device"`
	Browser    string         `json:"browser"`
	OS         string         `json:"os"`
	Country    string         `json:"country,omitempty"`
	City       string         `json:"city,omitempty"`
	Bot        bool           `json:"bot"`
	SentAt     *time.Time     `json:"sentAt,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// TrackRequest is the body accepted by the ingestion endpoint.
// Timestamp is the client clock and only kept when it parses as RFC 3339.
type TrackRequest struct {
	ProjectID  string         `json:"projectId"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	URL        string         `json:"url,omitempty"`
	Referrer   *string        `json:"referrer,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}
