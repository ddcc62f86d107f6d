package model

import "strings"

// ModelInfo is one entry of the /v1/models listing.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

const ClaudeDefaultModel = "claude-sonnet-4-20250514"

var DeepSeekModels = []ModelInfo{
	{ID: "deepseek-chat", Object: "model", Created: 1677610602, OwnedBy: "deepseek"},
	{ID: "deepseek-reasoner", Object: "model", Created: 1677610602, OwnedBy: "deepseek"},
	{ID: "deepseek-chat-search", Object: "model", Created: 1677610602, OwnedBy: "deepseek"},
	{ID: "deepseek-reasoner-search", Object: "model", Created: 1677610602, OwnedBy: "deepseek"},
}

var ClaudeModels = []ModelInfo{
	{ID: ClaudeDefaultModel, Object: "model", Created: 1715635200, OwnedBy: "anthropic"},
	{ID: ClaudeDefaultModel + "-fast", Object: "model", Created: 1715635200, OwnedBy: "anthropic"},
	{ID: ClaudeDefaultModel + "-slow", Object: "model", Created: 1715635200, OwnedBy: "anthropic"},
}

// ModelConfig resolves a model name to its upstream (thinking, search) flags.
// ok is false for unknown models.
func ModelConfig(name string) (thinking, search, ok bool) {
	switch strings.ToLower(name) {
	case "deepseek-chat":
		return false, false, true
	case "deepseek-reasoner":
		return true, false, true
	case "deepseek-chat-search":
		return false, true, true
	case "deepseek-reasoner-search":
		return true, true, true
	default:
		return false, false, false
	}
}

// MapClaudeModel maps a claude model name to an upstream model name using the
// configured fast/slow pair. Opus, reasoner and -slow variants go to slow.
func MapClaudeModel(name, fast, slow string) string {
	if fast == "" {
		fast = "deepseek-chat"
	}
	if slow == "" {
		slow = fast
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "opus") || strings.Contains(lower, "reasoner") || strings.Contains(lower, "slow") {
		return slow
	}
	return fast
}
