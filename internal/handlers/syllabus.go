package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tutorgate/tutorgate/internal/syllabus"
)

// SyllabusHandler serves the course outline JSON for a subject.
type SyllabusHandler struct {
	store  *syllabus.Store
	logger *slog.Logger
}

func NewSyllabusHandler(store *syllabus.Store, logger *slog.Logger) *SyllabusHandler {
	return &SyllabusHandler{store: store, logger: logger}
}

func (h *SyllabusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Load(r.FormValue("mainsubject"))
	if err != nil {
		h.logger.Error("Syllabus load failed", "error", err)
		writeJSONError(w, http.StatusNotFound, "syllabus not available")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
