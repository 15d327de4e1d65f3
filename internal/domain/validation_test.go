package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTrackRequired(t *testing.T) {
	cases := []struct {
		name string
		req  TrackRequest
	}{
		{"missing project", TrackRequest{Name: "signup"}},
		{"missing name", TrackRequest{ProjectID: "p1"}},
		{"blank name", TrackRequest{ProjectID: "p1", Name: "   "}},
		{"blank project", TrackRequest{ProjectID: "\t", Name: "signup"}},
		{"both missing", TrackRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateTrack(&tc.req), ErrMissingRequired)
		})
	}
}

func TestValidateTrackLeavesValuesAlone(t *testing.T) {
	ref := "https://example.com"
	req := TrackRequest{ProjectID: " p1 ", Name: " page_view ", SessionID: " s ", Referrer: &ref}
	assert.NoError(t, ValidateTrack(&req))
	assert.Equal(t, " p1 ", req.ProjectID)
	assert.Equal(t, " page_view ", req.Name)
	assert.Equal(t, " s ", req.SessionID)
}

func TestValidateTrackHasNoLengthCaps(t *testing.T) {
	req := TrackRequest{ProjectID: "p1", Name: strings.Repeat("x", 1000), URL: "https://example.com/?q=" + strings.Repeat("u", 8000)}
	assert.NoError(t, ValidateTrack(&req))
}
