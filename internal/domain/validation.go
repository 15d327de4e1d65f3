package domain

import (
	"errors"
	"strings"
)

// ErrMissingRequired is returned when projectId or name is absent.
var ErrMissingRequired = errors.New("projectId and name are required")

// ValidateTrack reports ErrMissingRequired when projectId or name is empty or
// whitespace. It never modifies r; values are stored exactly as submitted.
func ValidateTrack(r *TrackRequest) error {
	if strings.TrimSpace(r.ProjectID) == "" || strings.TrimSpace(r.Name) == "" {
		return ErrMissingRequired
	}
	return nil
}
