// Package idgen generates identifiers: UUIDs for stored rows, nanoid-backed
// keys and entity ids, and the advisory session/user ids the tracker uses.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// ClientPrefix marks identifiers minted by the tracker.
const ClientPrefix = "va_"

// APIKeyPrefix marks team API keys.
const APIKeyPrefix = "va_"

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	entityAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	keyAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

const (
	clientRandomLen = 9
	entityLen       = 20
	apiKeyLen       = 32
)

// NewEventID returns a random UUID string.
func NewEventID() string {
	return uuid.NewString()
}

// NewSessionID is used by the ingestion endpoint when the client omitted one.
func NewSessionID() string {
	return uuid.NewString()
}

// NewClientID returns "va_" + random base-36 + the base-36 millisecond clock.
// There is no collision detection; the ids are advisory correlation keys.
func NewClientID(now time.Time) (string, error) {
	r, err := nanoid.Generate(base36Alphabet, clientRandomLen)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return ClientPrefix + r + strconv.FormatInt(now.UnixMilli(), 36), nil
}

// NewEntityID returns an id for teams, projects and API key rows.
func NewEntityID() (string, error) {
	id, err := nanoid.Generate(entityAlphabet, entityLen)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

func NewAPIKey() (string, error) {
	k, err := nanoid.Generate(keyAlphabet, apiKeyLen)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return APIKeyPrefix + k, nil
}
