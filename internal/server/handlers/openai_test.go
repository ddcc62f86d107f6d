package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/model"
)

// A disconnected client must not cost us the audit row.
func TestStreamAuditSavedOnClientDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil).WithContext(ctx)

	// Upstream that never delivers an event, so the handler can only exit
	// through the disconnect path.
	pr, pw := io.Pipe()
	defer pw.Close()
	upResp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       pr,
	}

	audit := &model.RequestLog{Protocol: "openai", Model: "deepseek-chat", Stream: true}
	done := make(chan struct{})
	go func() {
		defer close(done)
		streamOpenAI(c, upResp, streamParams{
			completionID: "sess-1",
			model:        "deepseek-chat",
			prompt:       "hello there",
			audit:        audit,
			start:        time.Now(),
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("streamOpenAI did not return after client disconnect")
	}

	if audit.FinishReason != "client_disconnect" {
		t.Fatalf("finish reason = %q, want client_disconnect", audit.FinishReason)
	}
	if audit.PromptTokens == 0 {
		t.Fatal("prompt tokens were not recorded")
	}
}
