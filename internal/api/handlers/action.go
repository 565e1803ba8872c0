package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/models"
)

// ActionHandler accepts playback commands and forwards them to the
// active session
type ActionHandler struct {
	sessions SessionSource
	logger   *logrus.Logger
}

// NewActionHandler creates a new action handler
func NewActionHandler(sessions SessionSource, logger *logrus.Logger) *ActionHandler {
	return &ActionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type actionRequest struct {
	Action string `json:"action"`
}

// ServeHTTP handles the action endpoint
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	action, err := models.ParseAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := h.sessions()
	if sess == nil {
		http.Error(w, "No active session", http.StatusServiceUnavailable)
		return
	}

	sess.Dispatch(action)

	h.logger.WithFields(logrus.Fields{
		"action": string(action),
	}).Debug("Dispatched action")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "accepted",
		"action": string(action),
	})
}
