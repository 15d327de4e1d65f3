package transporthttp

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeInternal logs err with the request and answers a generic 500 body.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}
