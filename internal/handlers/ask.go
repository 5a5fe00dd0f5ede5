package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tutorgate/tutorgate/internal/history"
	"github.com/tutorgate/tutorgate/internal/prompts"
	"github.com/tutorgate/tutorgate/internal/proxy"
	"github.com/tutorgate/tutorgate/internal/upstream"
)

const (
	askMaxTokens        = 4096
	askTemperature      = 0.4
	askTopP             = 0.9
	askPresencePenalty  = 0.6
	askFrequencyPenalty = 0.8

	defaultTarget  = "CSIR Chemical Sciences Exam"
	defaultSubject = "Chemistry"
)

// AskHandler streams tutoring answers to the browser as Server-Sent Events
// and records the assembled turn in the history store once the stream ends.
type AskHandler struct {
	orchestrator *proxy.Orchestrator
	prompts      *prompts.Store
	history      history.Store
	logger       *slog.Logger
}

func NewAskHandler(orchestrator *proxy.Orchestrator, promptStore *prompts.Store, historyStore history.Store, logger *slog.Logger) *AskHandler {
	return &AskHandler{
		orchestrator: orchestrator,
		prompts:      promptStore,
		history:      historyStore,
		logger:       logger,
	}
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentKey := r.FormValue("agent_config_key")
	userText := r.FormValue("agent_text")
	if agentKey == "" || userText == "" {
		writeJSONError(w, http.StatusBadRequest, "agent_config_key and agent_text are required")
		return
	}

	target := formValue(r, "target", defaultTarget)
	subject := formValue(r, "subject", defaultSubject)
	topic := r.FormValue("topic")
	lesson := r.FormValue("lesson")
	tags := r.FormValue("tags")
	courseID := r.FormValue("courseid")
	userID := r.FormValue("userid")

	systemPrompt, err := h.buildSystemPrompt(target, subject, topic, lesson, tags, userText)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "prompt template error: %v", err)
		return
	}

	userPrompt := "Generate study notes for: " + userText
	req := &upstream.Request{
		Messages: []upstream.Message{
			{Role: upstream.RoleSystem, Content: systemPrompt},
			{Role: upstream.RoleUser, Content: userPrompt},
		},
		MaxTokens:        upstream.IntPtr(askMaxTokens),
		Temperature:      upstream.FloatPtr(askTemperature),
		TopP:             upstream.FloatPtr(askTopP),
		PresencePenalty:  upstream.FloatPtr(askPresencePenalty),
		FrequencyPenalty: upstream.FloatPtr(askFrequencyPenalty),
	}

	inputTokens := countTokens(h.logger, systemPrompt+userPrompt)
	h.logger.Info("Starting ask stream",
		"agent", agentKey,
		"subject", subject,
		"lesson", lesson,
		"input_tokens", inputTokens,
	)

	// Open the SSE channel before touching the upstream: the leading
	// comment frame defeats intermediary buffering and lets the client
	// start listening immediately.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	var fullText strings.Builder
	var meta *upstream.Metadata

	h.orchestrator.StreamCall(r.Context(), agentKey, FunctionAskAgent, req, func(ev upstream.Event) {
		switch ev.Type {
		case upstream.EventChunk:
			fullText.WriteString(ev.Text)
			writeSSE(w, "chunk", map[string]string{"content": ev.Text})
		case upstream.EventMetadata:
			meta = ev.Metadata
			writeSSE(w, "metadata", ev.Metadata)
		case upstream.EventError:
			payload := map[string]any{"error": ev.Err}
			if ev.Details != nil {
				payload["details"] = ev.Details
			}
			writeSSE(w, "error", payload)
		case upstream.EventDone:
			writeSSE(w, "done", map[string]any{})
		}
	})

	h.saveTurn(r, courseID, userID, subject, topic, lesson, userText, fullText.String(), meta, inputTokens)
}

func (h *AskHandler) buildSystemPrompt(target, subject, topic, lesson, tags, userText string) (string, error) {
	contextLines := []string{
		"**Exam**: " + target,
		"**Subject**: " + subject,
	}
	if lesson != "" {
		contextLines = append(contextLines, "**Lesson**: "+lesson)
	}
	if topic != "" {
		contextLines = append(contextLines, "**Topic**: "+topic)
	}
	if tags != "" {
		contextLines = append(contextLines, "**Keywords**: "+tags)
	}
	contextLines = append(contextLines, "**Student Query**: "+userText)

	topicClause := ""
	if topic != "" {
		topicClause = ", focusing on " + topic
	}

	return h.prompts.Render(prompts.AskAgent, prompts.Vars{
		"TARGET_EXAM":   target,
		"SUBJECT":       subject,
		"TOPIC":         topic,
		"TOPIC_CLAUSE":  topicClause,
		"LESSON":        lesson,
		"TAGS":          tags,
		"CONTEXT_BLOCK": strings.Join(contextLines, "\n"),
	})
}

func (h *AskHandler) saveTurn(r *http.Request, courseID, userID, subject, topic, lesson, userText, botResponse string, meta *upstream.Metadata, inputTokens int) {
	if botResponse == "" || courseID == "" {
		return
	}

	metadata := map[string]any{"input_tokens": inputTokens}
	if meta != nil {
		metadata["finish_reason"] = meta.FinishReason
		metadata["response_id"] = meta.ResponseID
		if meta.Usage != nil {
			metadata["usage"] = meta.Usage
		}
		if meta.Model != "" {
			metadata["model"] = meta.Model
		}
	}
	metadataJSON, _ := json.Marshal(metadata)

	record := &history.Record{
		ID:             uuid.NewString(),
		UserID:         userID,
		CourseID:       courseID,
		UserText:       userText,
		BotResponse:    botResponse,
		Metadata:       string(metadataJSON),
		FunctionCalled: FunctionAskAgent,
		Subject:        subject,
		Topic:          topic,
		Lesson:         lesson,
		TimeCreated:    time.Now(),
	}

	if err := h.history.Add(r.Context(), record); err != nil {
		h.logger.Error("Failed to store conversation turn", "error", err)
	}
}
