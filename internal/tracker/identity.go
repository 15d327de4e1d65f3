package tracker

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/idgen"
)

// Identity holds the session and user ids attached to every submission.
// Implementations back them with whatever storage the host has: the browser
// script uses sessionStorage and localStorage.
type Identity interface {
	SessionID() string
	SetSessionID(id string)
	UserID() string
	SetUserID(id string)
}

// MemoryIdentity keeps both ids in memory and mints each one on first read.
type MemoryIdentity struct {
	mu      sync.Mutex
	session string
	user    string
	now     func() time.Time
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{now: time.Now}
}

func (m *MemoryIdentity) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == "" {
		m.session = m.mint()
	}
	return m.session
}

func (m *MemoryIdentity) SetSessionID(id string) {
	m.mu.Lock()
	m.session = id
	m.mu.Unlock()
}

func (m *MemoryIdentity) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == "" {
		m.user = m.mint()
	}
	return m.user
}

func (m *MemoryIdentity) SetUserID(id string) {
	m.mu.Lock()
	m.user = id
	m.mu.Unlock()
}

// mint falls back to a UUID if the random source fails.
func (m *MemoryIdentity) mint() string {
	id, err := idgen.NewClientID(m.now())
	if err != nil {
		log.WithError(err).Warn("Falling back to a UUID client id.")
		return idgen.ClientPrefix + idgen.NewSessionID()
	}
	return id
}
