package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/session"
)

// SessionSource supplies the currently active playback session, if any.
// Sessions come and go with drive attachments while the server persists.
type SessionSource func() *session.Session

// StatusHandler handles status requests
type StatusHandler struct {
	sessions SessionSource
	logger   *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sessions SessionSource, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Active  bool              `json:"active"`
	Session *session.Snapshot `json:"session,omitempty"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{}
	if sess := h.sessions(); sess != nil {
		snap := sess.Snapshot()
		response.Active = true
		response.Session = &snap
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
