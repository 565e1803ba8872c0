package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/pondtv/internal/session"
)

// GuideHandler serves paged views of the current playlist (the channel
// guide's data; rendering is the front-end's problem)
type GuideHandler struct {
	sessions SessionSource
	pageSize func() int
	logger   *logrus.Logger
}

// NewGuideHandler creates a new guide handler. pageSize is read per
// request because the guide size comes from the attached drive's config.
func NewGuideHandler(sessions SessionSource, pageSize func() int, logger *logrus.Logger) *GuideHandler {
	return &GuideHandler{
		sessions: sessions,
		pageSize: pageSize,
		logger:   logger,
	}
}

// GuideResponse represents one page of the channel guide
type GuideResponse struct {
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
	Total int                `json:"total"`
	Items []session.ItemView `json:"items"`
}

// ServeHTTP handles the guide endpoint
func (h *GuideHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := h.sessions()
	if sess == nil {
		http.Error(w, "No active session", http.StatusServiceUnavailable)
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 {
			http.Error(w, "Invalid page", http.StatusBadRequest)
			return
		}
		page = p
	}

	size := h.pageSize()
	if size <= 0 {
		size = 10
	}

	queue := sess.Snapshot().Queue
	pages := (len(queue) + size - 1) / size

	start := page * size
	if start > len(queue) {
		start = len(queue)
	}
	end := start + size
	if end > len(queue) {
		end = len(queue)
	}

	response := GuideResponse{
		Page:  page,
		Pages: pages,
		Total: len(queue),
		Items: queue[start:end],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
