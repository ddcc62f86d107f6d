package prompt

import (
	"testing"

	"github.com/yuanshang000/ds2api/internal/model"
)

func str(s string) model.MessageContent {
	return model.MessageContent{Text: &s}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		messages []model.Message
		want     string
	}{
		{
			name:     "empty",
			messages: nil,
			want:     "",
		},
		{
			name: "single user turn carries no marker",
			messages: []model.Message{
				{Role: "user", Content: str("hello")},
			},
			want: "hello",
		},
		{
			name: "assistant turn is wrapped",
			messages: []model.Message{
				{Role: "user", Content: str("hi")},
				{Role: "assistant", Content: str("hey")},
				{Role: "user", Content: str("how are you")},
			},
			want: "hi<｜Assistant｜>hey<｜end▁of▁sentence｜><｜User｜>how are you",
		},
		{
			name: "consecutive same-role turns merge",
			messages: []model.Message{
				{Role: "system", Content: str("be brief")},
				{Role: "user", Content: str("question")},
			},
			want: "be brief\n\nquestion",
		},
		{
			name: "part lists keep text entries",
			messages: []model.Message{
				{Role: "user", Content: model.MessageContent{Parts: []model.ContentPart{
					{Type: "text", Text: "first"},
					{Type: "image_url"},
					{Type: "text", Text: "second"},
				}}},
			},
			want: "first\nsecond",
		},
		{
			name: "markdown images become links",
			messages: []model.Message{
				{Role: "user", Content: str("see ![diagram](https://x/d.png) above")},
			},
			want: "see [diagram](https://x/d.png) above",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compile(tt.messages); got != tt.want {
				t.Errorf("Compile() = %q, want %q", got, tt.want)
			}
		})
	}
}
