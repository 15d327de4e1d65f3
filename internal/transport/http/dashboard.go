package transporthttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/export"
	spg "github.com/ttracx/vibeanalytics/internal/storage/postgres"
)

// maxWindowDays caps the ?days= look-back of the read endpoints.
const maxWindowDays = 365

// parseDays reads ?days=, falling back to def when absent.
func parseDays(r *http.Request, def int) (int, bool) {
	s := strings.TrimSpace(r.URL.Query().Get("days"))
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxWindowDays {
		n = maxWindowDays
	}
	return n, true
}

// projectAccess resolves ?projectId= against the caller's team. It writes
// the error response itself and returns false when the request must stop.
func (d *ServerDeps) projectAccess(w http.ResponseWriter, r *http.Request) (string, *domain.Membership, bool) {
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return "", nil, false
	}
	caller, _ := CallerFromContext(r.Context())
	if caller == nil || caller.Membership == nil {
		writeError(w, http.StatusNotFound, "Project not found or unauthorized")
		return "", nil, false
	}
	ok, err := d.Store.TeamHasProject(r.Context(), caller.Membership.Team.ID, projectID)
	if err != nil {
		writeInternal(w, r, "Failed to load project", err)
		return "", nil, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found or unauthorized")
		return "", nil, false
	}
	return projectID, caller.Membership, true
}

// --- Stats ---

func (d *ServerDeps) HandleStats(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := d.projectAccess(w, r)
	if !ok {
		return
	}
	days, ok := parseDays(r, d.Cfg.ExportDefaultDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	stats, err := d.Store.QueryStats(r.Context(), projectID, days, d.Now())
	if err != nil {
		writeInternal(w, r, "Failed to load stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Export ---

func (d *ServerDeps) HandleExport(w http.ResponseWriter, r *http.Request) {
	projectID, m, ok := d.projectAccess(w, r)
	if !ok {
		return
	}
	if m.Team.Plan != domain.PlanPro {
		writeError(w, http.StatusForbidden, "Data export requires Pro plan")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, ok := parseDays(r, d.Cfg.ExportDefaultDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	now := d.Now()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	events, err := d.Store.ExportEvents(r.Context(), projectID, since, d.Cfg.ExportMaxRows)
	if err != nil {
		writeInternal(w, r, "Failed to export data", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == export.FormatCSV {
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(projectID)+`"`)
		w.WriteHeader(http.StatusOK)
		err = export.WriteCSV(w, events)
	} else {
		w.WriteHeader(http.StatusOK)
		err = export.WriteJSON(w, projectID, events, now)
	}
	if err != nil {
		// Headers are gone; all that is left is to record the failure.
		log.WithError(err).WithField("project_id", projectID).Error("Export write failed.")
		return
	}
	log.WithFields(log.Fields{
		"project_id": projectID,
		"format":     string(format),
		"rows":       len(events),
	}).Info("Exported events.")
}

// --- Team & API keys ---

type teamResp struct {
	Name                   string          `json:"name"`
	Plan                   domain.Plan     `json:"plan"`
	StripeCurrentPeriodEnd *time.Time      `json:"stripeCurrentPeriodEnd"`
	APIKeys                []domain.APIKey `json:"apiKeys"`
}

// teamOf returns the caller's membership or answers 404.
func teamOf(w http.ResponseWriter, r *http.Request) (*domain.Membership, bool) {
	caller, _ := CallerFromContext(r.Context())
	if caller == nil || caller.Membership == nil {
		writeError(w, http.StatusNotFound, "Team not found")
		return nil, false
	}
	return caller.Membership, true
}

func (d *ServerDeps) HandleTeam(w http.ResponseWriter, r *http.Request) {
	m, ok := teamOf(w, r)
	if !ok {
		return
	}
	keys, err := d.Store.ListAPIKeys(r.Context(), m.Team.ID)
	if err != nil {
		writeInternal(w, r, "Failed to fetch team", err)
		return
	}
	writeJSON(w, http.StatusOK, teamResp{
		Name:                   m.Team.Name,
		Plan:                   m.Team.Plan,
		StripeCurrentPeriodEnd: m.Team.StripeCurrentPeriodEnd,
		APIKeys:                keys,
	})
}

type createKeyReq struct {
	Name string `json:"name"`
}

func (d *ServerDeps) HandleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	m, ok := teamOf(w, r)
	if !ok {
		return
	}
	var req createKeyReq
	if err := decodeJSON(r, &req); err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return
	}
	key, err := d.Store.CreateAPIKey(r.Context(), m.Team.ID, req.Name)
	if err != nil {
		writeInternal(w, r, "Failed to create API key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.APIKey{"apiKey": key})
}

type deleteKeyReq struct {
	KeyID string `json:"keyId"`
}

func (d *ServerDeps) HandleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	m, ok := teamOf(w, r)
	if !ok {
		return
	}
	var req deleteKeyReq
	if err := decodeJSON(r, &req); err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return
	}
	err := d.Store.DeleteAPIKey(r.Context(), m.Team.ID, strings.TrimSpace(req.KeyID))
	if errors.Is(err, spg.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to delete API key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
