package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/history"
	"github.com/tutorgate/tutorgate/internal/prompts"
	"github.com/tutorgate/tutorgate/internal/proxy"
	"github.com/tutorgate/tutorgate/internal/registry"
)

type testSource map[string]config.AgentConfig

func (s testSource) AgentConfig(agentKey string) (config.AgentConfig, bool) {
	agent, ok := s[agentKey]
	return agent, ok
}

func newTestStack(t *testing.T, upstreamURL string) (*proxy.Orchestrator, history.Store) {
	t.Helper()

	source := testSource{
		"chem_tutor": {
			FunctionAskAgent:  {Endpoint: upstreamURL, APIKey: "sk-test", Model: "gpt-4o"},
			FunctionMCQ:       {Endpoint: upstreamURL, APIKey: "sk-test", Model: "gpt-4o"},
			FunctionWebSearch: {Endpoint: upstreamURL, APIKey: "sk-test"},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := history.NewMemoryStore("")
	require.NoError(t, err)

	return proxy.New(registry.NewResolver(source), logger), store
}

func askForm(values map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAskHandler_StreamsSSE(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Study \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"notes\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"cmpl-9\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstreamSrv.Close()

	orchestrator, store := newTestStack(t, upstreamSrv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAskHandler(orchestrator, prompts.NewStore(""), store, logger)

	req := askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"agent_text":       "Explain entropy",
		"courseid":         "101",
		"userid":           "7",
		"lesson":           "Thermodynamics II",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": connected\n\n"))
	assert.Contains(t, body, "event: chunk\ndata: {\"content\":\"Study \"}")
	assert.Contains(t, body, "event: chunk\ndata: {\"content\":\"notes\"}")
	assert.Contains(t, body, "event: metadata")
	assert.Contains(t, body, "\"finish_reason\":\"stop\"")
	assert.Contains(t, body, "event: done\ndata: {}")

	// Completed turn is persisted.
	records, total, err := store.List(req.Context(), history.Filter{CourseID: "101", General: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Explain entropy", records[0].UserText)
	assert.Equal(t, "Study notes", records[0].BotResponse)
	assert.Equal(t, FunctionAskAgent, records[0].FunctionCalled)
	assert.Equal(t, "Thermodynamics II", records[0].Lesson)
	assert.Contains(t, records[0].Metadata, "finish_reason")
}

func TestAskHandler_ResponsesUpstream(t *testing.T) {
	var gotPath string
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: response.created\ndata: {\"response\":{\"id\":\"resp-1\"}}\n\n")
		fmt.Fprint(w, "event: response.output_text.delta\ndata: {\"delta\":\"Entropy \"}\n\n")
		fmt.Fprint(w, "event: response.output_text.delta\ndata: {\"delta\":\"rises\"}\n\n")
		fmt.Fprint(w, "event: response.completed\ndata: {\"response\":{\"id\":\"resp-1\",\"usage\":{\"total_tokens\":12}}}\n\n")
	}))
	defer upstreamSrv.Close()

	source := testSource{
		"chem_tutor": {
			FunctionAskAgent: {Endpoint: upstreamSrv.URL, APIKey: "sk-test", Model: "gpt-5"},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := history.NewMemoryStore("")
	require.NoError(t, err)
	orchestrator := proxy.New(registry.NewResolver(source), logger)
	handler := NewAskHandler(orchestrator, prompts.NewStore(""), store, logger)

	req := askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"agent_text":       "Explain entropy",
		"courseid":         "101",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// gpt-5 routes through the Responses adapter and its URL normalization.
	assert.Contains(t, gotPath, "/openai/responses")
	assert.Contains(t, gotPath, "api-version=2025-04-01-preview")

	body := rec.Body.String()
	assert.Contains(t, body, "event: chunk\ndata: {\"content\":\"Entropy \"}")
	assert.Contains(t, body, "event: chunk\ndata: {\"content\":\"rises\"}")
	assert.Contains(t, body, "\"response_id\":\"resp-1\"")
	assert.Contains(t, body, "event: done\ndata: {}")

	records, _, err := store.List(req.Context(), history.Filter{CourseID: "101", General: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Entropy rises", records[0].BotResponse)
}

func TestAskHandler_MissingParams(t *testing.T) {
	orchestrator, store := newTestStack(t, "http://unused.invalid")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAskHandler(orchestrator, prompts.NewStore(""), store, logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, askForm(map[string]string{"agent_config_key": "chem_tutor"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_text")
}

func TestAskHandler_UnknownAgentStreamsError(t *testing.T) {
	orchestrator, store := newTestStack(t, "http://unused.invalid")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAskHandler(orchestrator, prompts.NewStore(""), store, logger)

	req := askForm(map[string]string{
		"agent_config_key": "ghost",
		"agent_text":       "hello",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Resolution failures surface inside the already-open SSE stream.
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "agent not found")
	assert.Contains(t, body, "event: done")
}

func TestAskHandler_NoHistoryWithoutCourse(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer upstreamSrv.Close()

	orchestrator, store := newTestStack(t, upstreamSrv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAskHandler(orchestrator, prompts.NewStore(""), store, logger)

	req := askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"agent_text":       "hello",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	_, total, err := store.List(req.Context(), history.Filter{General: true})
	require.NoError(t, err)
	assert.Zero(t, total)
}
