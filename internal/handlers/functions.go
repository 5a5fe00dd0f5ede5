package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tutorgate/tutorgate/internal/proxy"
)

// FunctionHandler forwards auxiliary tool calls (web search, YouTube
// summarization) to their configured endpoints and returns the upstream
// response body verbatim.
type FunctionHandler struct {
	orchestrator *proxy.Orchestrator
	logger       *slog.Logger
}

func NewFunctionHandler(orchestrator *proxy.Orchestrator, logger *slog.Logger) *FunctionHandler {
	return &FunctionHandler{orchestrator: orchestrator, logger: logger}
}

func (h *FunctionHandler) WebSearch(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, FunctionWebSearch, "query", r.FormValue("query"))
}

func (h *FunctionHandler) YouTubeSummarize(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, FunctionYouTube, "videoId", r.FormValue("video_id"))
}

func (h *FunctionHandler) forward(w http.ResponseWriter, r *http.Request, functionName, payloadKey, value string) {
	agentKey := r.FormValue("agent_config_key")
	if agentKey == "" || value == "" {
		writeJSONError(w, http.StatusBadRequest, "agent_config_key and "+payloadKey+" are required")
		return
	}

	body, err := h.orchestrator.CallRaw(r.Context(), agentKey, functionName, map[string]string{payloadKey: value})
	if err != nil {
		h.logger.Error("Function call failed", "function", functionName, "error", err)
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
