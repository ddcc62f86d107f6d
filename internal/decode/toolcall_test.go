package decode

import "testing"

func TestParseToolCalls(t *testing.T) {
	requested := []string{"get_weather", "search_web"}

	tests := []struct {
		name string
		text string
		want []ToolCall
	}{
		{
			name: "whole response is a tool call",
			text: `{"tool_calls": [{"name": "get_weather", "input": {"city": "Beijing"}}]}`,
			want: []ToolCall{{Name: "get_weather", Input: map[string]any{"city": "Beijing"}}},
		},
		{
			name: "embedded in prose",
			text: "Let me check.\n{\"tool_calls\": [{\"name\": \"search_web\", \"input\": {\"q\": \"go\"}}]}\nDone.",
			want: []ToolCall{{Name: "search_web", Input: map[string]any{"q": "go"}}},
		},
		{
			name: "unknown tool filtered out",
			text: `{"tool_calls": [{"name": "rm_rf", "input": {}}]}`,
			want: nil,
		},
		{
			name: "missing input becomes empty map",
			text: `{"tool_calls": [{"name": "get_weather"}]}`,
			want: []ToolCall{{Name: "get_weather", Input: map[string]any{}}},
		},
		{
			name: "malformed json skipped",
			text: `{"tool_calls": [{"name": get_weather}]}`,
			want: nil,
		},
		{
			name: "plain text",
			text: "the weather is nice today",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolCalls(tt.text, requested)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d calls, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Name != tt.want[i].Name {
					t.Errorf("call %d name = %q, want %q", i, got[i].Name, tt.want[i].Name)
				}
				if len(got[i].Input) != len(tt.want[i].Input) {
					t.Errorf("call %d input = %+v, want %+v", i, got[i].Input, tt.want[i].Input)
				}
			}
		})
	}

	if got := ParseToolCalls(`{"tool_calls": [{"name": "get_weather"}]}`, nil); got != nil {
		t.Errorf("no requested tools: got %+v, want nil", got)
	}
}
