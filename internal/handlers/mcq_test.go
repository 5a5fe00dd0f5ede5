package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorgate/tutorgate/internal/history"
	"github.com/tutorgate/tutorgate/internal/prompts"
)

const mcqUpstreamText = `Q1. What is the SI unit of entropy?
A. J/K
B. J/mol
C. K/J
D. mol/K
**Answer: A**
**Explanation:** Entropy is heat over temperature.

Q2. Broken question with too few options?
A. yes
B. no
**Answer: A**

Q3. Which law forbids perpetual motion of the second kind?
A. Zeroth law
B. First law
C. Second law
D. Third law
**Answer: C**
**Explanation:** The second law bounds conversion of heat to work.
**DONE**`

func newMCQHandler(t *testing.T, upstreamURL string) (*MCQHandler, history.Store) {
	t.Helper()
	orchestrator, store := newTestStack(t, upstreamURL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMCQHandler(orchestrator, prompts.NewStore(""), store, logger), store
}

func TestMCQHandler_GeneratesQuiz(t *testing.T) {
	var upstreamBody map[string]any
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upstreamBody))
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{
			"id":      "cmpl-77",
			"model":   "gpt-4o",
			"object":  "chat.completion",
			"created": 1724900000,
			"usage":   map[string]any{"total_tokens": 500},
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": mcqUpstreamText},
				},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer upstreamSrv.Close()

	handler, store := newMCQHandler(t, upstreamSrv.URL)

	req := askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"level":            "basic",
		"agent_text":       "Entropy and the second law",
		"courseid":         "101",
		"number":           "3",
		"lesson":           "Thermodynamics II",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Status string `json:"status"`
		Data   struct {
			Questions []struct {
				Question string   `json:"question"`
				Options  []string `json:"options"`
				Correct  string   `json:"correct"`
			} `json:"questions"`
			Metadata map[string]any `json:"metadata"`
		} `json:"data"`
		APIMetadata map[string]any `json:"api_metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "success", response.Status)

	// The malformed second question is dropped, the rest survive.
	require.Len(t, response.Data.Questions, 2)
	assert.Equal(t, "What is the SI unit of entropy?", response.Data.Questions[0].Question)
	assert.Equal(t, "A", response.Data.Questions[0].Correct)
	assert.Equal(t, []string{"J/K", "J/mol", "K/J", "mol/K"}, response.Data.Questions[0].Options)
	assert.Equal(t, "C", response.Data.Questions[1].Correct)

	assert.Equal(t, "basic", response.Data.Metadata["level"])
	assert.Equal(t, float64(2), response.Data.Metadata["count"])
	assert.Equal(t, "1.0", response.Data.Metadata["format_version"])
	assert.NotEmpty(t, response.Data.Metadata["history_id"])

	assert.Equal(t, "gpt-4o", response.APIMetadata["model"])
	assert.Equal(t, "cmpl-77", response.APIMetadata["id"])
	assert.Equal(t, "stop", response.APIMetadata["finish_reason"])

	// Upstream payload carries the basic-level sampling parameters.
	assert.Equal(t, false, upstreamBody["stream"])
	assert.Equal(t, float64(3000), upstreamBody["max_tokens"])
	assert.Equal(t, 0.6, upstreamBody["temperature"])
	assert.Equal(t, 0.9, upstreamBody["top_p"])
	assert.Equal(t, 0.7, upstreamBody["frequency_penalty"])
	assert.Equal(t, 0.8, upstreamBody["presence_penalty"])

	// Quiz snapshot is stored under the history id it reported.
	historyID, _ := response.Data.Metadata["history_id"].(string)
	record, err := store.Get(req.Context(), historyID)
	require.NoError(t, err)
	assert.Equal(t, "BASIC MCQ: Entropy and the second law", record.UserText)
	assert.Equal(t, "mcq_widget", record.FunctionCalled)
}

func TestMCQHandler_InvalidLevel(t *testing.T) {
	handler, _ := newMCQHandler(t, "http://unused.invalid")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"level":            "expert",
		"agent_text":       "x",
		"courseid":         "101",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "error", response["status"])
	assert.Equal(t, "MCQ_GENERATION_ERROR", response["code"])
}

func TestMCQHandler_MissingParams(t *testing.T) {
	handler, _ := newMCQHandler(t, "http://unused.invalid")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, askForm(map[string]string{"level": "basic"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMCQHandler_UnparseableOutput(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I cannot generate questions right now."}}]}`)
	}))
	defer upstreamSrv.Close()

	handler, _ := newMCQHandler(t, upstreamSrv.URL)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"level":            "advanced",
		"agent_text":       "x",
		"courseid":         "101",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "error", response["status"])
	assert.Equal(t, "MCQ_GENERATION_ERROR", response["code"])
}

func TestMCQHandler_UpstreamFailure(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstreamSrv.Close()

	handler, _ := newMCQHandler(t, upstreamSrv.URL)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, askForm(map[string]string{
		"agent_config_key": "chem_tutor",
		"level":            "intermediate",
		"agent_text":       "x",
		"courseid":         "101",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
