package model

import (
	"encoding/json"
	"strings"
)

// ChatCompletionRequest is the OpenAI-shaped inbound request body.
type ChatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// Message is a chat message whose content is either a plain string or a list
// of typed parts.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

type MessageContent struct {
	Text  *string
	Parts []ContentPart
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return []byte("null"), nil
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = &s
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		return nil
	}
	// Anything else (number, object) degrades to its raw text form.
	raw := string(data)
	c.Text = &raw
	return nil
}

// Flatten reduces the content to plain text. Part lists keep only their
// text-typed entries, joined with newlines.
func (c MessageContent) Flatten() string {
	if c.Text != nil {
		return *c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, p := range c.Parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Tool is an OpenAI function tool definition. The simplified form without the
// nested "function" object is accepted too.
type Tool struct {
	Type     string        `json:"type,omitempty"`
	Function *ToolFunction `json:"function,omitempty"`
	Name     string        `json:"name,omitempty"`
	Desc     string        `json:"description,omitempty"`
	Schema   ToolSchema    `json:"parameters,omitempty"`
}

type ToolFunction struct {
	Name   string     `json:"name"`
	Desc   string     `json:"description,omitempty"`
	Schema ToolSchema `json:"parameters,omitempty"`
}

type ToolSchema struct {
	Type       string                     `json:"type,omitempty"`
	Properties map[string]ToolSchemaProp  `json:"properties,omitempty"`
	Required   []string                   `json:"required,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

type ToolSchemaProp struct {
	Type string `json:"type,omitempty"`
	Desc string `json:"description,omitempty"`
}

// Spec returns name, description and schema regardless of which tool form the
// caller used.
func (t Tool) Spec() (string, string, ToolSchema) {
	if t.Function != nil {
		return t.Function.Name, t.Function.Desc, t.Function.Schema
	}
	return t.Name, t.Desc, t.Schema
}

// Outbound OpenAI-shaped response types.

type ChatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}

type CompletionChoice struct {
	Index        int                `json:"index"`
	Message      *CompletionMessage `json:"message,omitempty"`
	Delta        *CompletionDelta   `json:"delta,omitempty"`
	FinishReason *string            `json:"finish_reason,omitempty"`
}

type CompletionMessage struct {
	Role             string           `json:"role"`
	Content          *string          `json:"content"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
}

type CompletionDelta struct {
	Role             string           `json:"role,omitempty"`
	Content          string           `json:"content,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
}

type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIToolFunction `json:"function"`
}

type OpenAIToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Usage struct {
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Details          *UsageDetails `json:"completion_tokens_details,omitempty"`
}

type UsageDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}
