package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yuanshang000/ds2api/internal/decode"
	"github.com/yuanshang000/ds2api/internal/model"
)

// toolDesc is the schema summary embedded into the injected system prompt.
type toolDesc struct {
	name   string
	desc   string
	schema model.ToolSchema
}

func describeTool(d toolDesc) string {
	var sb strings.Builder
	if d.desc == "" {
		d.desc = "No description available"
	}
	fmt.Fprintf(&sb, "Tool: %s\nDescription: %s", d.name, d.desc)
	if len(d.schema.Properties) > 0 {
		sb.WriteString("\nParameters:")
		required := make(map[string]struct{}, len(d.schema.Required))
		for _, r := range d.schema.Required {
			required[r] = struct{}{}
		}
		for name, prop := range d.schema.Properties {
			propType := prop.Type
			if propType == "" {
				propType = "string"
			}
			suffix := ""
			if _, ok := required[name]; ok {
				suffix = " (required)"
			}
			fmt.Fprintf(&sb, "\n  - %s: %s%s", name, propType, suffix)
		}
	}
	return sb.String()
}

// openAIToolPrompt is the instruction block injected as (or appended to) the
// system message when the caller declares tools.
func openAIToolPrompt(tools []model.Tool) string {
	descs := make([]string, 0, len(tools))
	for _, t := range tools {
		name, desc, schema := t.Spec()
		if name == "" {
			name = "unknown"
		}
		descs = append(descs, describeTool(toolDesc{name: name, desc: desc, schema: schema}))
	}
	return fmt.Sprintf(`You have access to these tools:

%s

When you need to use tools, output ONLY this JSON format (no other text):
{"tool_calls": [
  {"name": "tool_name", "input": {"param": "value"}}
]}

IMPORTANT: If calling tools, output ONLY the JSON. The response must start with { and end with }`,
		strings.Join(descs, "\n"))
}

func claudeToolPrompt(tools []model.ClaudeTool) string {
	descs := make([]string, 0, len(tools))
	for _, t := range tools {
		name := t.Name
		if name == "" {
			name = "unknown"
		}
		descs = append(descs, describeTool(toolDesc{name: name, desc: t.Description, schema: t.InputSchema}))
	}
	return fmt.Sprintf(`You are Claude, a helpful AI assistant. You have access to these tools:

%s

When you need to use tools, you can call multiple tools in a single response. Use this format:

{"tool_calls": [
  {"name": "tool1", "input": {"param": "value"}},
  {"name": "tool2", "input": {"param": "value"}}
]}

IMPORTANT: You can call multiple tools in ONE response.

Remember: Output ONLY the JSON, no other text. The response must start with { and end with ]}`,
		strings.Join(descs, "\n"))
}

// injectToolPrompt appends the tool instructions to the first system message,
// or prepends a new system message when none exists.
func injectToolPrompt(messages []model.Message, toolPrompt string) []model.Message {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m.Role == "system" {
			merged := m.Content.Flatten() + "\n\n" + toolPrompt
			out[i] = model.Message{Role: "system", Content: model.MessageContent{Text: &merged}}
			return out
		}
	}
	return append([]model.Message{{Role: "system", Content: model.MessageContent{Text: &toolPrompt}}}, out...)
}

func openAIToolNames(tools []model.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		name, _, _ := t.Spec()
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func claudeToolNames(tools []model.ClaudeTool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// formatOpenAIToolCalls converts detected calls into the OpenAI wire shape.
func formatOpenAIToolCalls(calls []decode.ToolCall) []model.OpenAIToolCall {
	out := make([]model.OpenAIToolCall, 0, len(calls))
	for _, call := range calls {
		args, err := json.Marshal(call.Input)
		if err != nil {
			args = []byte("{}")
		}
		out = append(out, model.OpenAIToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			Function: model.OpenAIToolFunction{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	return out
}
