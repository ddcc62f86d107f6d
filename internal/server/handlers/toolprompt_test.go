package handlers

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/yuanshang000/ds2api/internal/decode"
	"github.com/yuanshang000/ds2api/internal/model"
)

func strPtr(s string) *string { return &s }

func TestDescribeTool(t *testing.T) {
	got := describeTool(toolDesc{
		name: "get_weather",
		desc: "Look up the weather",
		schema: model.ToolSchema{
			Type: "object",
			Properties: map[string]model.ToolSchemaProp{
				"city": {Type: "string"},
			},
			Required: []string{"city"},
		},
	})
	for _, want := range []string{
		"Tool: get_weather",
		"Description: Look up the weather",
		"Parameters:",
		"- city: string (required)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("description missing %q:\n%s", want, got)
		}
	}
}

func TestDescribeToolDefaults(t *testing.T) {
	got := describeTool(toolDesc{
		name: "noop",
		schema: model.ToolSchema{
			Properties: map[string]model.ToolSchemaProp{"arg": {}},
		},
	})
	if !strings.Contains(got, "Description: No description available") {
		t.Errorf("missing default description:\n%s", got)
	}
	if !strings.Contains(got, "- arg: string") {
		t.Errorf("untyped parameter should default to string:\n%s", got)
	}
	if strings.Contains(got, "(required)") {
		t.Errorf("optional parameter marked required:\n%s", got)
	}
}

func TestInjectToolPrompt(t *testing.T) {
	prompt := "tool instructions"

	t.Run("appends to existing system message", func(t *testing.T) {
		msgs := []model.Message{
			{Role: "system", Content: model.MessageContent{Text: strPtr("be helpful")}},
			{Role: "user", Content: model.MessageContent{Text: strPtr("hi")}},
		}
		out := injectToolPrompt(msgs, prompt)
		if len(out) != 2 {
			t.Fatalf("len = %d, want 2", len(out))
		}
		want := "be helpful\n\ntool instructions"
		if got := out[0].Content.Flatten(); got != want {
			t.Errorf("system content = %q, want %q", got, want)
		}
		// input slice must stay untouched
		if got := msgs[0].Content.Flatten(); got != "be helpful" {
			t.Errorf("input mutated: %q", got)
		}
	})

	t.Run("prepends when no system message", func(t *testing.T) {
		msgs := []model.Message{
			{Role: "user", Content: model.MessageContent{Text: strPtr("hi")}},
		}
		out := injectToolPrompt(msgs, prompt)
		if len(out) != 2 {
			t.Fatalf("len = %d, want 2", len(out))
		}
		if out[0].Role != "system" || out[0].Content.Flatten() != prompt {
			t.Errorf("first message = %s %q", out[0].Role, out[0].Content.Flatten())
		}
		if out[1].Role != "user" {
			t.Errorf("second message role = %s, want user", out[1].Role)
		}
	})
}

func TestOpenAIToolNames(t *testing.T) {
	tools := []model.Tool{
		{Function: &model.ToolFunction{Name: "alpha"}},
		{Name: "beta"},
		{},
	}
	got := openAIToolNames(tools)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("names = %v, want [alpha beta]", got)
	}
}

func TestFormatOpenAIToolCalls(t *testing.T) {
	calls := []decode.ToolCall{
		{Name: "get_weather", Input: map[string]any{"city": "Hangzhou"}},
		{Name: "noop", Input: map[string]any{}},
	}
	out := formatOpenAIToolCalls(calls)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	for i, call := range out {
		if !strings.HasPrefix(call.ID, "call_") {
			t.Errorf("call %d id = %q, want call_ prefix", i, call.ID)
		}
		if call.Type != "function" {
			t.Errorf("call %d type = %q, want function", i, call.Type)
		}
	}
	if out[0].Function.Name != "get_weather" {
		t.Errorf("name = %q", out[0].Function.Name)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(out[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not json: %v", err)
	}
	if args["city"] != "Hangzhou" {
		t.Errorf("arguments = %v", args)
	}
	if out[1].Function.Arguments != "{}" {
		t.Errorf("empty input arguments = %q, want {}", out[1].Function.Arguments)
	}
}
