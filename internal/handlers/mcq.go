package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tutorgate/tutorgate/internal/history"
	"github.com/tutorgate/tutorgate/internal/mcq"
	"github.com/tutorgate/tutorgate/internal/prompts"
	"github.com/tutorgate/tutorgate/internal/proxy"
	"github.com/tutorgate/tutorgate/internal/upstream"
)

const (
	mcqTemperature      = 0.6
	mcqTopP             = 0.9
	mcqFrequencyPenalty = 0.7
	mcqPresencePenalty  = 0.8

	mcqFormatVersion = "1.0"

	defaultQuestionCount = 5
)

var mcqLevels = map[string]struct {
	template  string
	maxTokens int
}{
	"basic":        {prompts.MCQBasic, 3000},
	"intermediate": {prompts.MCQIntermediate, 4000},
	"advanced":     {prompts.MCQAdvanced, 4000},
}

// MCQHandler generates a quiz through the non-streaming proxy path, parses
// the loosely formatted model output into strict JSON and stores the result.
type MCQHandler struct {
	orchestrator *proxy.Orchestrator
	prompts      *prompts.Store
	history      history.Store
	logger       *slog.Logger
}

func NewMCQHandler(orchestrator *proxy.Orchestrator, promptStore *prompts.Store, historyStore history.Store, logger *slog.Logger) *MCQHandler {
	return &MCQHandler{
		orchestrator: orchestrator,
		prompts:      promptStore,
		history:      historyStore,
		logger:       logger,
	}
}

func (h *MCQHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentKey := r.FormValue("agent_config_key")
	level := r.FormValue("level")
	agentText := r.FormValue("agent_text")
	courseID := r.FormValue("courseid")
	if agentKey == "" || agentText == "" || courseID == "" {
		h.fail(w, http.StatusBadRequest, "agent_config_key, agent_text and courseid are required")
		return
	}

	levelCfg, ok := mcqLevels[level]
	if !ok {
		h.fail(w, http.StatusBadRequest, "invalid level: "+level)
		return
	}

	questionCount := defaultQuestionCount
	if n, err := strconv.Atoi(r.FormValue("number")); err == nil && n > 0 {
		questionCount = n
	}

	target := formValue(r, "target", defaultTarget)
	subject := formValue(r, "subject", defaultSubject)
	topic := r.FormValue("topic")
	lesson := r.FormValue("lesson")
	tags := r.FormValue("tags")

	systemPrompt, err := h.prompts.Render(levelCfg.template, prompts.Vars{
		"QUESTION_COUNT": strconv.Itoa(questionCount),
		"TARGET_EXAM":    target,
		"SUBJECT":        subject,
		"TOPIC":          topic,
		"LESSON":         lesson,
		"LEVEL":          level,
		"AGENT_TEXT":     agentText,
		"TAGS":           tags,
	})
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "prompt template error: "+err.Error())
		return
	}

	req := &upstream.Request{
		Messages: []upstream.Message{
			{Role: upstream.RoleSystem, Content: systemPrompt},
			{Role: upstream.RoleUser, Content: fmt.Sprintf("Generate %d MCQs on: %s", questionCount, agentText)},
		},
		MaxTokens:        upstream.IntPtr(levelCfg.maxTokens),
		Temperature:      upstream.FloatPtr(mcqTemperature),
		TopP:             upstream.FloatPtr(mcqTopP),
		FrequencyPenalty: upstream.FloatPtr(mcqFrequencyPenalty),
		PresencePenalty:  upstream.FloatPtr(mcqPresencePenalty),
	}

	start := time.Now()
	result, err := h.orchestrator.Call(r.Context(), agentKey, FunctionMCQ, req)
	apiDuration := time.Since(start).Milliseconds()
	if err != nil {
		h.logger.Error("MCQ upstream call failed", "agent", agentKey, "error", err)
		h.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	set := mcq.Parse(result.Text)
	for _, rejection := range set.Rejected {
		h.logger.Warn("Rejected MCQ block", "question", rejection.Number, "reason", rejection.Reason)
	}
	if len(set.Questions) == 0 {
		h.fail(w, http.StatusInternalServerError, "failed to parse MCQ text into structured format")
		return
	}

	apiMetadata := extractAPIMetadata(result.RawBody)

	data := map[string]any{
		"questions": set.Questions,
		"metadata": map[string]any{
			"level":           level,
			"count":           len(set.Questions),
			"subject":         subject,
			"topic":           topic,
			"lesson":          lesson,
			"target_exam":     target,
			"agent_text":      agentText,
			"tags":            tags,
			"generated_at":    time.Now().Unix(),
			"api_duration_ms": apiDuration,
			"format_version":  mcqFormatVersion,
		},
	}

	historyID := h.saveQuiz(r, courseID, level, agentText, subject, topic, lesson, data, apiMetadata)
	if historyID != "" {
		data["metadata"].(map[string]any)["history_id"] = historyID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"data":         data,
		"api_metadata": apiMetadata,
	})
}

func (h *MCQHandler) fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"message": message,
		"code":    "MCQ_GENERATION_ERROR",
	})
}

// extractAPIMetadata pulls the diagnostic fields out of the raw upstream
// response; absent fields stay null so callers can tell "missing" from
// "empty".
func extractAPIMetadata(raw []byte) map[string]any {
	var response map[string]any
	if err := json.Unmarshal(raw, &response); err != nil {
		return map[string]any{}
	}

	metadata := map[string]any{
		"model":              response["model"],
		"id":                 response["id"],
		"created":            response["created"],
		"object":             response["object"],
		"usage":              response["usage"],
		"system_fingerprint": response["system_fingerprint"],
	}

	if choices, ok := response["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			metadata["finish_reason"] = choice["finish_reason"]
		}
	}

	return metadata
}

func (h *MCQHandler) saveQuiz(r *http.Request, courseID, level, agentText, subject, topic, lesson string, data map[string]any, apiMetadata map[string]any) string {
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		h.logger.Error("Failed to marshal quiz data", "error", err)
		return ""
	}
	metadataJSON, _ := json.MarshalIndent(apiMetadata, "", "  ")

	record := &history.Record{
		ID:             uuid.NewString(),
		UserID:         r.FormValue("userid"),
		CourseID:       courseID,
		UserText:       strings.ToUpper(level) + " MCQ: " + agentText,
		BotResponse:    string(dataJSON),
		Metadata:       string(metadataJSON),
		FunctionCalled: "mcq_widget",
		Subject:        subject,
		Topic:          topic,
		Lesson:         lesson,
		TimeCreated:    time.Now(),
	}

	if err := h.history.Add(r.Context(), record); err != nil {
		h.logger.Error("Failed to store quiz", "error", err)
		return ""
	}
	return record.ID
}
