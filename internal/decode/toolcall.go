package decode

import (
	"encoding/json"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// ToolCall is a tool invocation the model emitted inline in its text output.
type ToolCall struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// toolCallPattern matches an inline {"tool_calls": [...]} object anywhere in
// the text, lazily, spanning newlines.
var toolCallPattern = regexp2.MustCompile(
	`\{\s*["']tool_calls["']\s*:\s*\[(.*?)\]\s*\}`,
	regexp2.Singleline,
)

// ParseToolCalls scans the model's text output for inline tool invocations.
// Only names present in requested are kept; malformed candidates are dropped.
func ParseToolCalls(text string, requested []string) []ToolCall {
	if len(requested) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		allowed[name] = struct{}{}
	}
	cleaned := strings.TrimSpace(text)

	// fast path: the whole response is the tool-call object
	if strings.HasPrefix(cleaned, `{"tool_calls":`) && strings.HasSuffix(cleaned, "]}") {
		if calls := decodeToolCalls(cleaned, allowed); len(calls) > 0 {
			return calls
		}
	}

	var out []ToolCall
	m, err := toolCallPattern.FindStringMatch(cleaned)
	for err == nil && m != nil {
		candidate := `{"tool_calls": [` + m.GroupByNumber(1).String() + `]}`
		out = append(out, decodeToolCalls(candidate, allowed)...)
		m, err = toolCallPattern.FindNextMatch(m)
	}
	if err != nil {
		log.Warnf("tool-call scan aborted: %v", err)
	}
	return out
}

func decodeToolCalls(candidate string, allowed map[string]struct{}) []ToolCall {
	var payload struct {
		ToolCalls []ToolCall `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil
	}
	var out []ToolCall
	for _, call := range payload.ToolCalls {
		if _, ok := allowed[call.Name]; !ok {
			continue
		}
		if call.Input == nil {
			call.Input = map[string]any{}
		}
		out = append(out, call)
	}
	return out
}
