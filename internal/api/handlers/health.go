package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/drive"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	monitor *drive.Monitor
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(monitor *drive.Monitor, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{monitor: monitor, logger: logger}
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	presence := drive.Absent
	if _, ok := h.monitor.Current(); ok {
		presence = drive.Present
	}

	response := map[string]string{
		"status": "healthy",
		"drive":  string(presence),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
