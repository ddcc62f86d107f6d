package model

import "testing"

func TestModelConfig(t *testing.T) {
	tests := []struct {
		name                        string
		thinking, search, available bool
	}{
		{"deepseek-chat", false, false, true},
		{"deepseek-reasoner", true, false, true},
		{"deepseek-chat-search", false, true, true},
		{"deepseek-reasoner-search", true, true, true},
		{"DeepSeek-Chat", false, false, true},
		{"gpt-4o", false, false, false},
	}
	for _, tc := range tests {
		thinking, search, ok := ModelConfig(tc.name)
		if thinking != tc.thinking || search != tc.search || ok != tc.available {
			t.Errorf("ModelConfig(%q) = %v %v %v, want %v %v %v",
				tc.name, thinking, search, ok, tc.thinking, tc.search, tc.available)
		}
	}
}

func TestMapClaudeModel(t *testing.T) {
	tests := []struct {
		name       string
		fast, slow string
		want       string
	}{
		{"claude-sonnet-4-20250514", "deepseek-chat", "deepseek-reasoner", "deepseek-chat"},
		{"claude-opus-4-20250514", "deepseek-chat", "deepseek-reasoner", "deepseek-reasoner"},
		{"claude-sonnet-4-20250514-slow", "deepseek-chat", "deepseek-reasoner", "deepseek-reasoner"},
		{"claude-sonnet-4-20250514-fast", "deepseek-chat", "deepseek-reasoner", "deepseek-chat"},
		{"anything", "", "", "deepseek-chat"},
		{"opus", "", "", "deepseek-chat"}, // slow falls back to fast
		{"opus", "deepseek-chat-search", "", "deepseek-chat-search"},
	}
	for _, tc := range tests {
		if got := MapClaudeModel(tc.name, tc.fast, tc.slow); got != tc.want {
			t.Errorf("MapClaudeModel(%q, %q, %q) = %q, want %q", tc.name, tc.fast, tc.slow, got, tc.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"0123456789", 2},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEstimateContentTokens(t *testing.T) {
	text := "12345678"
	if got := EstimateContentTokens(MessageContent{Text: &text}); got != 2 {
		t.Errorf("string content = %d, want 2", got)
	}
	parts := MessageContent{Parts: []ContentPart{
		{Type: "text", Text: "12345678"},
		{Type: "text", Text: "1234"},
	}}
	if got := EstimateContentTokens(parts); got != 3 {
		t.Errorf("part content = %d, want 3", got)
	}
	if got := EstimateContentTokens(MessageContent{}); got != 1 {
		t.Errorf("empty content = %d, want 1", got)
	}
}
