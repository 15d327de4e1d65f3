// Package export encodes stored events for download.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps the query value; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Filename is the attachment name offered for CSV downloads.
func Filename(projectID string) string {
	return fmt.Sprintf("vibeanalytics-export-%s.csv", projectID)
}

// ISO8601 matches the millisecond UTC layout browsers produce.
const ISO8601 = "2006-01-02T15:04:05.000Z"

var csvHeader = []string{
	"id", "name", "timestamp", "sessionId", "userId", "url", "referrer",
	"device", "browser", "os", "country", "city", "properties",
}

// WriteCSV writes a header line plus one line per event, separated by "\n"
// with no trailing newline. Every field is quoted and embedded quotes are
// doubled.
func WriteCSV(w io.Writer, events []domain.Event) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}
	for i := range events {
		row, err := csvRow(&events[i])
		if err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		for j, field := range row {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(field)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func csvRow(ev *domain.Event) ([]string, error) {
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshal properties of %s: %w", ev.ID, err)
	}
	return []string{
		ev.ID,
		ev.Name,
		ev.Timestamp.UTC().Format(ISO8601),
		ev.SessionID,
		ev.UserID,
		ev.URL,
		ev.Referrer,
		ev.Device,
		ev.Browser,
		ev.OS,
		ev.Country,
		ev.City,
		string(propsJSON),
	}, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

type Document struct {
	ProjectID  string         `json:"projectId"`
	ExportedAt string         `json:"exportedAt"`
	EventCount int            `json:"eventCount"`
	Events     []domain.Event `json:"events"`
}

func WriteJSON(w io.Writer, projectID string, events []domain.Event, now time.Time) error {
	if events == nil {
		events = []domain.Event{}
	}
	return json.NewEncoder(w).Encode(Document{
		ProjectID:  projectID,
		ExportedAt: now.UTC().Format(ISO8601),
		EventCount: len(events),
		Events:     events,
	})
}
