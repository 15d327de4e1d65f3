// Package tracker is a Go client for the ingestion endpoint. It follows the
// same contract as the served browser script: fire-and-forget submissions
// stamped with durable session and user ids.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

const (
	attrPrefix = "data-va-"
	attrEvent  = "data-va-event"
)

const defaultTimeout = 10 * time.Second

// Payload is the body posted to /api/track.
type Payload struct {
	ProjectID  string         `json:"projectId"`
	Name       string         `json:"name"`
	SessionID  string         `json:"sessionId"`
	UserID     string         `json:"userId"`
	Properties map[string]any `json:"properties"`
	URL        string         `json:"url"`
	Referrer   *string        `json:"referrer"`
	Timestamp  string         `json:"timestamp"`
}

// Result is published once per delivery attempt. Status is zero when the
// request never got a response.
type Result struct {
	Payload Payload
	Status  int
	Err     error
}

type Config struct {
	// Endpoint is the full URL of the ingestion endpoint.
	Endpoint  string
	ProjectID string

	HTTPClient *http.Client
	Identity   Identity
	Location   Location
	// Observer, when set, receives every Result. It runs on the delivery
	// goroutine.
	Observer func(Result)
	Now      func() time.Time
}

type Client struct {
	endpoint  string
	projectID string
	http      *http.Client
	identity  Identity
	location  Location
	observer  func(Result)
	now       func() time.Time

	wg     sync.WaitGroup
	mu     sync.Mutex
	stop   []func()
	closed bool
}

var (
	ErrMissingProject = errors.New("tracker: project id is required")
	// ErrClosed is reported to the observer for submissions made after Close.
	ErrClosed = errors.New("tracker: client closed")
)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, ErrMissingProject
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("tracker: endpoint is required")
	}
	c := &Client{
		endpoint:  cfg.Endpoint,
		projectID: cfg.ProjectID,
		http:      cfg.HTTPClient,
		identity:  cfg.Identity,
		location:  cfg.Location,
		observer:  cfg.Observer,
		now:       cfg.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.identity == nil {
		c.identity = NewMemoryIdentity()
	}
	if c.location == nil {
		c.location = NewNavigator(Page{})
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// EndpointFor derives the ingestion URL from a base URL or from the URL the
// tracker script was served at.
func EndpointFor(base string) string {
	base = strings.TrimSuffix(base, "/tracker.js")
	return strings.TrimRight(base, "/") + "/api/track"
}

// Track submits one event without blocking. Ids and the current page are
// read now; delivery happens on its own goroutine.
func (c *Client) Track(name string, properties map[string]any) {
	p := c.payload(name, properties)
	if !c.spawn(func() { c.deliver(p) }) && c.observer != nil {
		c.observer(Result{Payload: p, Err: ErrClosed})
	}
}

// spawn runs fn on a tracked goroutine unless the client is closed. The
// WaitGroup is only incremented under mu, so no Add races with Close's Wait.
func (c *Client) spawn(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

func (c *Client) payload(name string, properties map[string]any) Payload {
	if properties == nil {
		properties = map[string]any{}
	}
	page := c.location.Current()
	var ref *string
	if page.Referrer != "" {
		r := page.Referrer
		ref = &r
	}
	return Payload{
		ProjectID:  c.projectID,
		Name:       name,
		SessionID:  c.identity.SessionID(),
		UserID:     c.identity.UserID(),
		Properties: properties,
		URL:        page.URL,
		Referrer:   ref,
		Timestamp:  c.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

func (c *Client) deliver(p Payload) {
	res := Result{Payload: p}
	res.Status, res.Err = c.post(p)
	if res.Err != nil {
		log.WithError(res.Err).WithField("name", p.Name).Debug("Tracker delivery failed.")
	}
	if c.observer != nil {
		c.observer(res)
	}
}

func (c *Client) post(p Payload) (int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("track %q: status %d", p.Name, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// PageView submits page_view with the current page's title and location parts.
func (c *Client) PageView() {
	page := c.location.Current()
	c.Track(domain.EventPageView, map[string]any{
		"title":  page.Title,
		"path":   page.Path,
		"search": page.Search,
		"hash":   page.Hash,
	})
}

// Click handles a click on an element with the given attributes. Elements
// without data-va-event are ignored; the other data-va-* attributes become
// properties with the prefix removed.
func (c *Client) Click(attrs map[string]string) bool {
	name := attrs[attrEvent]
	if name == "" {
		return false
	}
	props := map[string]any{}
	for k, v := range attrs {
		if k != attrEvent && strings.HasPrefix(k, attrPrefix) {
			props[strings.TrimPrefix(k, attrPrefix)] = v
		}
	}
	c.Track(name, props)
	return true
}

// Identify replaces the durable user id. Traits, when given, are sent as a
// $identify event.
func (c *Client) Identify(userID string, traits map[string]any) {
	c.identity.SetUserID(userID)
	if traits != nil {
		c.Track(domain.EventIdentify, traits)
	}
}

func (c *Client) SessionID() string { return c.identity.SessionID() }
func (c *Client) UserID() string    { return c.identity.UserID() }

// Start sends the initial page view and one more per navigation notice.
// Each notice is handled on a new goroutine so the navigation finishes
// before the page is read.
func (c *Client) Start(nav Navigation) {
	c.PageView()
	if nav == nil {
		return
	}
	unsub := nav.Subscribe(func() {
		c.spawn(c.PageView)
	})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	c.stop = append(c.stop, unsub)
	c.mu.Unlock()
}

// Wait blocks until every submission made so far has been attempted.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close stops navigation tracking and waits for in-flight deliveries.
// Submissions after Close are dropped.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	for _, fn := range stop {
		fn()
	}
	c.Wait()
}
