package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yuanshang000/ds2api/internal/conf"
	"github.com/yuanshang000/ds2api/internal/decode"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/op"
	"github.com/yuanshang000/ds2api/internal/prompt"
	"github.com/yuanshang000/ds2api/internal/relay"
	"github.com/yuanshang000/ds2api/internal/server/middleware"
	"github.com/yuanshang000/ds2api/internal/server/router"
	"github.com/yuanshang000/ds2api/internal/utils/log"
	"github.com/yuanshang000/ds2api/internal/utils/snowflake"
)

func init() {
	router.NewGroupRouter("/anthropic/v1").
		AddRoute(
			router.NewRoute("/models", http.MethodGet).
				Handle(listClaudeModels),
		)
	router.NewGroupRouter("/anthropic/v1").
		Use(middleware.GatewayAuth()).
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("/messages", http.MethodPost).
				Handle(claudeMessages),
		).
		AddRoute(
			router.NewRoute("/messages/count_tokens", http.MethodPost).
				Handle(claudeCountTokens),
		)
}

func listClaudeModels(c *gin.Context) {
	c.JSON(http.StatusOK, model.ModelList{Object: "list", Data: model.ClaudeModels})
}

func claudeError(c *gin.Context, status int, errType, msg string) {
	c.JSON(status, gin.H{"error": model.ClaudeError{Type: errType, Message: msg}})
}

// normalizeClaudeMessages flattens block-list contents into plain text
// messages: text blocks keep their text, tool_result blocks contribute their
// payload, everything else is dropped.
func normalizeClaudeMessages(messages []model.ClaudeMessage) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		var text string
		if m.Content.Text != nil {
			text = *m.Content.Text
		} else {
			var parts []string
			for _, b := range m.Content.Blocks {
				switch b.Type {
				case "text":
					parts = append(parts, b.Text)
				case "tool_result":
					if len(b.Content) > 0 {
						var s string
						if err := json.Unmarshal(b.Content, &s); err != nil {
							s = string(b.Content)
						}
						parts = append(parts, s)
					}
				}
			}
			text = strings.Join(parts, "\n")
		}
		out = append(out, model.Message{Role: m.Role, Content: model.MessageContent{Text: &text}})
	}
	return out
}

func hasSystemRole(messages []model.Message) bool {
	for _, m := range messages {
		if m.Role == "system" {
			return true
		}
	}
	return false
}

func claudeMessages(c *gin.Context) {
	var req model.ClaudeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		claudeError(c, http.StatusBadRequest, "invalid_request_error", "Invalid JSON body.")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		claudeError(c, http.StatusBadRequest, "invalid_request_error", "Request must include 'model' and 'messages'.")
		return
	}

	mapping := conf.AppConfig.ClaudeMapping
	upstreamModel := model.MapClaudeModel(req.Model, mapping.Fast, mapping.Slow)
	thinking, search, ok := model.ModelConfig(upstreamModel)
	if !ok {
		claudeError(c, http.StatusServiceUnavailable, "api_error",
			fmt.Sprintf("Mapped model '%s' is not available.", upstreamModel))
		return
	}

	messages := normalizeClaudeMessages(req.Messages)
	toolNames := claudeToolNames(req.Tools)
	if len(req.Tools) > 0 && !hasSystemRole(messages) {
		toolText := claudeToolPrompt(req.Tools)
		messages = append([]model.Message{{Role: "system", Content: model.MessageContent{Text: &toolText}}}, messages...)
	}
	if req.System != nil {
		systemText := req.System.Flatten()
		messages = append([]model.Message{{Role: "system", Content: model.MessageContent{Text: &systemText}}}, messages...)
	}
	finalPrompt := prompt.Compile(messages)

	session := authorize(c, func(c *gin.Context, status int, msg string) {
		errType := "api_error"
		if status == http.StatusTooManyRequests {
			errType = "overloaded_error"
		}
		claudeError(c, status, errType, msg)
	})
	if session == nil {
		return
	}
	defer session.Close()

	ctx := c.Request.Context()
	sessionID, err := deps.Relay.CreateSession(ctx, session)
	if err != nil {
		claudeError(c, http.StatusUnauthorized, "authentication_error", "invalid token.")
		return
	}
	upResp, err := deps.Relay.Completion(ctx, session, sessionID, finalPrompt, thinking, search)
	if err != nil {
		if errors.Is(err, relay.ErrPowFailed) {
			claudeError(c, http.StatusUnauthorized, "authentication_error", "Failed to get PoW (invalid token or unknown error).")
		} else {
			claudeError(c, http.StatusInternalServerError, "api_error", "Failed to get response.")
		}
		return
	}

	start := time.Now()
	finalThinking, finalText, _ := relay.Collect(ctx, upResp, thinking, search)
	detected := decode.ParseToolCalls(finalText, toolNames)

	messageID := fmt.Sprintf("msg_%d", snowflake.GenerateID())
	inputTokens := model.EstimateTokens(finalPrompt)
	stopReason := "end_turn"
	if len(detected) > 0 {
		stopReason = "tool_use"
	}

	auditRow := &model.RequestLog{
		Protocol:        "claude",
		Model:           req.Model,
		Pooled:          session.Pooled,
		Stream:          req.Stream,
		PromptTokens:    inputTokens,
		ReasoningTokens: len(finalThinking) / 4,
		FinishReason:    stopReason,
	}
	if session.Account != nil {
		auditRow.AccountID = session.Account.Identifier()
	}

	if req.Stream {
		streamClaude(c, claudeStreamParams{
			messageID:   messageID,
			model:       req.Model,
			inputTokens: inputTokens,
			thinking:    finalThinking,
			text:        finalText,
			useThinking: thinking,
			detected:    detected,
		})
	} else {
		respondClaude(c, claudeResponseParams{
			messageID:   messageID,
			model:       req.Model,
			inputTokens: inputTokens,
			thinking:    finalThinking,
			text:        finalText,
			detected:    detected,
			stopReason:  stopReason,
		})
	}

	auditRow.DurationMS = time.Since(start).Milliseconds()
	auditRow.CompletionTokens = (len(finalText) + len(finalThinking)) / 4
	op.RequestLogSave(context.Background(), auditRow)
}

type claudeStreamParams struct {
	messageID   string
	model       string
	inputTokens int
	thinking    string
	text        string
	useThinking bool
	detected    []decode.ToolCall
}

func intPtr(i int) *int { return &i }

// writeClaudeSSE writes one event with the typed event line the Anthropic
// stream format requires.
func writeClaudeSSE(c *gin.Context, ev model.ClaudeStreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("marshal stream event: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
	c.Writer.Flush()
}

// streamClaude emits the buffered response as the Anthropic event sequence:
// message_start, one block per content kind, message_delta, message_stop.
func streamClaude(c *gin.Context, p claudeStreamParams) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writeClaudeSSE(c, model.ClaudeStreamEvent{
		Type: "message_start",
		Message: &model.ClaudeResponse{
			ID:      p.messageID,
			Type:    "message",
			Role:    "assistant",
			Model:   p.model,
			Content: []model.ClaudeContentBlock{},
			Usage:   model.ClaudeUsage{InputTokens: p.inputTokens},
		},
	})

	index := 0
	outputTokens := 0

	if p.useThinking && p.thinking != "" {
		writeClaudeSSE(c, model.ClaudeStreamEvent{
			Type:         "content_block_start",
			Index:        intPtr(index),
			ContentBlock: &model.ClaudeContentBlock{Type: "thinking"},
		})
		delta, _ := json.Marshal(gin.H{"type": "thinking_delta", "thinking": p.thinking})
		writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "content_block_delta", Index: intPtr(index), Delta: delta})
		writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "content_block_stop", Index: intPtr(index)})
		outputTokens += len(p.thinking) / 4
		index++
	}

	stopReason := "end_turn"
	if len(p.detected) > 0 {
		stopReason = "tool_use"
		for _, call := range p.detected {
			input, _ := json.Marshal(call.Input)
			writeClaudeSSE(c, model.ClaudeStreamEvent{
				Type:  "content_block_start",
				Index: intPtr(index),
				ContentBlock: &model.ClaudeContentBlock{
					Type:  "tool_use",
					ID:    "toolu_" + uuid.NewString(),
					Name:  call.Name,
					Input: input,
				},
			})
			writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "content_block_stop", Index: intPtr(index)})
			outputTokens += len(input) / 4
			index++
		}
	} else if p.text != "" {
		writeClaudeSSE(c, model.ClaudeStreamEvent{
			Type:         "content_block_start",
			Index:        intPtr(index),
			ContentBlock: &model.ClaudeContentBlock{Type: "text"},
		})
		delta, _ := json.Marshal(gin.H{"type": "text_delta", "text": p.text})
		writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "content_block_delta", Index: intPtr(index), Delta: delta})
		writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "content_block_stop", Index: intPtr(index)})
		outputTokens += len(p.text) / 4
	}

	deltaPayload, _ := json.Marshal(gin.H{"stop_reason": stopReason, "stop_sequence": nil})
	writeClaudeSSE(c, model.ClaudeStreamEvent{
		Type:  "message_delta",
		Delta: deltaPayload,
		Usage: &model.ClaudeUsage{OutputTokens: outputTokens},
	})
	writeClaudeSSE(c, model.ClaudeStreamEvent{Type: "message_stop"})
}

type claudeResponseParams struct {
	messageID   string
	model       string
	inputTokens int
	thinking    string
	text        string
	detected    []decode.ToolCall
	stopReason  string
}

func respondClaude(c *gin.Context, p claudeResponseParams) {
	content := []model.ClaudeContentBlock{}
	if p.thinking != "" {
		content = append(content, model.ClaudeContentBlock{Type: "thinking", Thinking: p.thinking})
	}
	if len(p.detected) > 0 {
		for _, call := range p.detected {
			input, _ := json.Marshal(call.Input)
			content = append(content, model.ClaudeContentBlock{
				Type:  "tool_use",
				ID:    "toolu_" + uuid.NewString(),
				Name:  call.Name,
				Input: input,
			})
		}
	} else {
		content = append(content, model.ClaudeContentBlock{Type: "text", Text: p.text})
	}

	c.JSON(http.StatusOK, model.ClaudeResponse{
		ID:         p.messageID,
		Type:       "message",
		Role:       "assistant",
		Model:      p.model,
		Content:    content,
		StopReason: &p.stopReason,
		Usage: model.ClaudeUsage{
			InputTokens:  p.inputTokens,
			OutputTokens: (len(p.text) + len(p.thinking)) / 4,
		},
	})
}

func claudeCountTokens(c *gin.Context) {
	var req model.ClaudeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		claudeError(c, http.StatusBadRequest, "invalid_request_error", "Invalid JSON body.")
		return
	}

	inputTokens := 0
	if req.System != nil {
		inputTokens += model.EstimateTokens(req.System.Flatten())
	}
	for _, m := range req.Messages {
		inputTokens += 2 // role markers
		if m.Content.Text != nil {
			inputTokens += model.EstimateTokens(*m.Content.Text)
			continue
		}
		for _, b := range m.Content.Blocks {
			switch b.Type {
			case "text":
				inputTokens += model.EstimateTokens(b.Text)
			case "tool_result":
				inputTokens += model.EstimateTokens(string(b.Content))
			default:
				raw, _ := json.Marshal(b)
				inputTokens += model.EstimateTokens(string(raw))
			}
		}
	}
	for _, t := range req.Tools {
		inputTokens += model.EstimateTokens(t.Name)
		inputTokens += model.EstimateTokens(t.Description)
		if schema, err := json.Marshal(t.InputSchema); err == nil {
			inputTokens += model.EstimateTokens(string(schema))
		}
	}
	if inputTokens < 1 {
		inputTokens = 1
	}
	c.JSON(http.StatusOK, gin.H{"input_tokens": inputTokens})
}
