package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorgate/tutorgate/internal/history"
)

// HistoryHandler exposes stored conversation turns and quiz snapshots.
type HistoryHandler struct {
	store  history.Store
	logger *slog.Logger
}

func NewHistoryHandler(store history.Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

type historyListRequest struct {
	CourseID string `json:"courseid"`
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	Lesson   string `json:"lesson"`
	General  bool   `json:"general"`
	Page     int    `json:"page"`
	PerPage  int    `json:"perpage"`
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var req historyListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CourseID == "" {
		writeJSONError(w, http.StatusBadRequest, "courseid is required")
		return
	}
	if req.Lesson == "" && !req.General {
		writeJSONError(w, http.StatusBadRequest, "lesson is required unless general is set")
		return
	}

	records, total, err := h.store.List(r.Context(), history.Filter{
		CourseID: req.CourseID,
		Subject:  req.Subject,
		Topic:    req.Topic,
		Lesson:   req.Lesson,
		General:  req.General,
		Page:     req.Page,
		PerPage:  req.PerPage,
	})
	if err != nil {
		h.logger.Error("History list failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"records": records,
		"total":   total,
	})
}

func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "record not found")
			return
		}
		h.logger.Error("History get failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load record")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"record": record,
	})
}
