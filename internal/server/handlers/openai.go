package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/account"
	"github.com/yuanshang000/ds2api/internal/decode"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/op"
	"github.com/yuanshang000/ds2api/internal/prompt"
	"github.com/yuanshang000/ds2api/internal/relay"
	"github.com/yuanshang000/ds2api/internal/server/middleware"
	"github.com/yuanshang000/ds2api/internal/server/router"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

func init() {
	router.NewGroupRouter("/v1").
		AddRoute(
			router.NewRoute("/models", http.MethodGet).
				Handle(listModels),
		)
	router.NewGroupRouter("/v1").
		Use(middleware.GatewayAuth()).
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("/chat/completions", http.MethodPost).
				Handle(chatCompletions),
		)
}

func listModels(c *gin.Context) {
	c.JSON(http.StatusOK, model.ModelList{Object: "list", Data: model.DeepSeekModels})
}

func openAIError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// authorize maps the middleware-extracted credential to a relay session and
// translates the relay's sentinel errors into HTTP responses.
func authorize(c *gin.Context, onError func(*gin.Context, int, string)) *relay.Session {
	session, err := deps.Relay.Authorize(c.Request.Context(), c.GetString(middleware.BearerKey))
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNoAccountAvailable):
			onError(c, http.StatusTooManyRequests, "No accounts configured or all accounts are busy.")
		case errors.Is(err, relay.ErrLoginFailed):
			onError(c, http.StatusInternalServerError, "Account login failed.")
		default:
			onError(c, http.StatusInternalServerError, "Account login failed.")
		}
		return nil
	}
	return session
}

func chatCompletions(c *gin.Context) {
	var req model.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		openAIError(c, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		openAIError(c, http.StatusBadRequest, "Request must include 'model' and 'messages'.")
		return
	}
	thinking, search, ok := model.ModelConfig(req.Model)
	if !ok {
		openAIError(c, http.StatusServiceUnavailable, fmt.Sprintf("Model '%s' is not available.", req.Model))
		return
	}

	session := authorize(c, openAIError)
	if session == nil {
		return
	}
	defer session.Close()

	messages := req.Messages
	toolNames := openAIToolNames(req.Tools)
	if len(req.Tools) > 0 {
		messages = injectToolPrompt(messages, openAIToolPrompt(req.Tools))
	}
	finalPrompt := prompt.Compile(messages)

	ctx := c.Request.Context()
	sessionID, err := deps.Relay.CreateSession(ctx, session)
	if err != nil {
		openAIError(c, http.StatusUnauthorized, "invalid token.")
		return
	}
	upResp, err := deps.Relay.Completion(ctx, session, sessionID, finalPrompt, thinking, search)
	if err != nil {
		if errors.Is(err, relay.ErrPowFailed) {
			openAIError(c, http.StatusUnauthorized, "Failed to get PoW (invalid token or unknown error).")
		} else {
			openAIError(c, http.StatusInternalServerError, "Failed to get completion.")
		}
		return
	}

	start := time.Now()
	auditRow := &model.RequestLog{
		Protocol: "openai",
		Model:    req.Model,
		Pooled:   session.Pooled,
		Stream:   req.Stream,
	}
	if session.Account != nil {
		auditRow.AccountID = session.Account.Identifier()
	}

	if req.Stream {
		streamOpenAI(c, upResp, streamParams{
			completionID: sessionID,
			model:        req.Model,
			prompt:       finalPrompt,
			thinking:     thinking,
			search:       search,
			toolNames:    toolNames,
			audit:        auditRow,
			start:        start,
		})
		return
	}

	finalThinking, finalText, filtered := relay.Collect(ctx, upResp, thinking, search)

	finishReason := "stop"
	var toolCalls []model.OpenAIToolCall
	if detected := decode.ParseToolCalls(finalText, toolNames); len(detected) > 0 {
		toolCalls = formatOpenAIToolCalls(detected)
		finishReason = "tool_calls"
	} else if filtered {
		finishReason = "content_filter"
	}

	message := &model.CompletionMessage{Role: "assistant"}
	if toolCalls != nil {
		message.ToolCalls = toolCalls
	} else {
		message.Content = &finalText
	}
	if thinking && finalThinking != "" {
		message.ReasoningContent = finalThinking
	}

	promptTokens := model.EstimateTokens(finalPrompt)
	reasoningTokens := len(finalThinking) / 4
	completionTokens := len(finalText) / 4

	auditRow.DurationMS = time.Since(start).Milliseconds()
	auditRow.PromptTokens = promptTokens
	auditRow.CompletionTokens = reasoningTokens + completionTokens
	auditRow.ReasoningTokens = reasoningTokens
	auditRow.FinishReason = finishReason
	op.RequestLogSave(context.Background(), auditRow)

	c.JSON(http.StatusOK, model.ChatCompletion{
		ID:      sessionID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []model.CompletionChoice{{
			Index:        0,
			Message:      message,
			FinishReason: &finishReason,
		}},
		Usage: &model.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: reasoningTokens + completionTokens,
			TotalTokens:      promptTokens + reasoningTokens + completionTokens,
			Details:          &model.UsageDetails{ReasoningTokens: reasoningTokens},
		},
	})
}

type streamParams struct {
	completionID string
	model        string
	prompt       string
	thinking     bool
	search       bool
	toolNames    []string
	audit        *model.RequestLog
	start        time.Time
}

func writeSSE(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal stream chunk: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

// streamOpenAI pushes the decoded upstream stream to the client as OpenAI
// chat.completion.chunk events, with keep-alive comments while the upstream
// is quiet and a forced stop once an idle stream clearly died.
func streamOpenAI(c *gin.Context, upResp *http.Response, p streamParams) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events := relay.Stream(ctx, upResp, p.thinking)
	created := time.Now().Unix()

	var finalText, finalThinking string
	firstChunkSent := false
	hasContent := false
	keepAliveCount := 0
	lastSend := time.Now()
	lastContent := time.Now()
	finishReason := "stop"

	// The audit row is written on every exit path, a client disconnect
	// mid-stream included.
	defer func() {
		p.audit.DurationMS = time.Since(p.start).Milliseconds()
		p.audit.PromptTokens = model.EstimateTokens(p.prompt)
		p.audit.ReasoningTokens = len(finalThinking) / 4
		p.audit.CompletionTokens = p.audit.ReasoningTokens + len(finalText)/4
		p.audit.FinishReason = finishReason
		op.RequestLogSave(context.Background(), p.audit)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-c.Request.Context().Done():
			log.Infof("client disconnected, stopping stream")
			finishReason = "client_disconnect"
			return
		case <-ticker.C:
			now := time.Now()
			if hasContent && now.Sub(lastContent) > relay.StreamIdleTimeout {
				log.Warnf("stream idle for %s with content, forcing stop", relay.StreamIdleTimeout)
				break loop
			}
			if hasContent && keepAliveCount >= relay.MaxKeepAliveCount {
				log.Warnf("%d consecutive keep-alives, forcing stop", relay.MaxKeepAliveCount)
				break loop
			}
			if now.Sub(lastSend) >= relay.KeepAliveInterval {
				fmt.Fprint(c.Writer, ": keep-alive\n\n")
				c.Writer.Flush()
				lastSend = now
				keepAliveCount++
			}
		case ev, chanOpen := <-events:
			if !chanOpen || ev.Finished {
				break loop
			}
			keepAliveCount = 0
			if ev.Filtered {
				finishReason = "content_filter"
				break loop
			}

			delta := model.CompletionDelta{}
			if !firstChunkSent {
				delta.Role = "assistant"
			}
			for _, frag := range ev.Fragments {
				if decode.IsCitation(frag.Content, p.search) {
					continue
				}
				if frag.Kind == decode.KindThinking {
					if p.thinking {
						finalThinking += frag.Content
						delta.ReasoningContent += frag.Content
					}
				} else {
					finalText += frag.Content
					delta.Content += frag.Content
				}
			}
			if delta.Role == "" && delta.Content == "" && delta.ReasoningContent == "" {
				continue
			}
			firstChunkSent = true
			hasContent = true
			now := time.Now()
			lastContent = now
			lastSend = now
			writeSSE(c, model.ChatCompletion{
				ID:      p.completionID,
				Object:  "chat.completion.chunk",
				Created: created,
				Model:   p.model,
				Choices: []model.CompletionChoice{{Index: 0, Delta: &delta}},
			})
		}
	}

	var toolCalls []model.OpenAIToolCall
	if detected := decode.ParseToolCalls(finalText, p.toolNames); len(detected) > 0 {
		toolCalls = formatOpenAIToolCalls(detected)
		finishReason = "tool_calls"
	}
	if toolCalls != nil {
		writeSSE(c, model.ChatCompletion{
			ID:      p.completionID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   p.model,
			Choices: []model.CompletionChoice{{Index: 0, Delta: &model.CompletionDelta{ToolCalls: toolCalls}}},
		})
	}

	promptTokens := model.EstimateTokens(p.prompt)
	reasoningTokens := len(finalThinking) / 4
	completionTokens := len(finalText) / 4
	writeSSE(c, model.ChatCompletion{
		ID:      p.completionID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   p.model,
		Choices: []model.CompletionChoice{{Index: 0, Delta: &model.CompletionDelta{}, FinishReason: &finishReason}},
		Usage: &model.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: reasoningTokens + completionTokens,
			TotalTokens:      promptTokens + reasoningTokens + completionTokens,
			Details:          &model.UsageDetails{ReasoningTokens: reasoningTokens},
		},
	})
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
