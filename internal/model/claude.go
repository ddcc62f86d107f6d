package model

import "encoding/json"

// ClaudeMessageRequest is the Anthropic-shaped inbound request body.
type ClaudeMessageRequest struct {
	Model     string          `json:"model"`
	Messages  []ClaudeMessage `json:"messages"`
	System    *MessageContent `json:"system,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Stream    bool            `json:"stream"`
	Tools     []ClaudeTool    `json:"tools,omitempty"`
}

type ClaudeMessage struct {
	Role    string              `json:"role"`
	Content ClaudeMessageContent `json:"content"`
}

// ClaudeMessageContent is a string or a list of content blocks.
type ClaudeMessageContent struct {
	Text   *string
	Blocks []ClaudeContentBlock
}

func (c ClaudeMessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return []byte("null"), nil
}

func (c *ClaudeMessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = &s
		return nil
	}
	var blocks []ClaudeContentBlock
	if err := json.Unmarshal(data, &blocks); err == nil {
		c.Blocks = blocks
		return nil
	}
	raw := string(data)
	c.Text = &raw
	return nil
}

type ClaudeContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"` // tool_result payload
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

type ClaudeTool struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema ToolSchema `json:"input_schema,omitempty"`
}

// Outbound Claude-shaped response types.

type ClaudeResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Role         string               `json:"role"`
	Model        string               `json:"model"`
	Content      []ClaudeContentBlock `json:"content"`
	StopReason   *string              `json:"stop_reason"`
	StopSequence *string              `json:"stop_sequence"`
	Usage        ClaudeUsage          `json:"usage"`
}

type ClaudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ClaudeStreamEvent is the generic SSE event frame for the messages stream.
type ClaudeStreamEvent struct {
	Type         string               `json:"type"`
	Message      *ClaudeResponse      `json:"message,omitempty"`
	Index        *int                 `json:"index,omitempty"`
	ContentBlock *ClaudeContentBlock  `json:"content_block,omitempty"`
	Delta        json.RawMessage      `json:"delta,omitempty"`
	Usage        *ClaudeUsage         `json:"usage,omitempty"`
	Error        *ClaudeError         `json:"error,omitempty"`
}

type ClaudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
