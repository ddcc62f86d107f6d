// Package prompt flattens multi-turn conversations into the single prompt
// string the upstream completion endpoint consumes.
package prompt

import (
	"regexp"
	"strings"

	"github.com/yuanshang000/ds2api/internal/model"
)

const (
	assistantMarker = "<｜Assistant｜>"
	userMarker      = "<｜User｜>"
	endOfSentence   = "<｜end▁of▁sentence｜>"
)

// markdown images are rewritten to plain links so the upstream does not try
// to fetch them
var markdownImagePattern = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

type block struct {
	role string
	text string
}

// Compile merges a message list into one tagged prompt. Consecutive messages
// with the same role are joined, assistant turns are wrapped in assistant
// markers, and every user/system turn after the first gets a user marker.
func Compile(messages []model.Message) string {
	if len(messages) == 0 {
		return ""
	}

	blocks := make([]block, 0, len(messages))
	for _, m := range messages {
		blocks = append(blocks, block{role: m.Role, text: m.Content.Flatten()})
	}

	merged := blocks[:1]
	for _, b := range blocks[1:] {
		last := &merged[len(merged)-1]
		if b.role == last.role {
			last.text += "\n\n" + b.text
		} else {
			merged = append(merged, b)
		}
	}

	var sb strings.Builder
	for i, b := range merged {
		switch b.role {
		case "assistant":
			sb.WriteString(assistantMarker)
			sb.WriteString(b.text)
			sb.WriteString(endOfSentence)
		case "user", "system":
			if i > 0 {
				sb.WriteString(userMarker)
			}
			sb.WriteString(b.text)
		default:
			sb.WriteString(b.text)
		}
	}

	return markdownImagePattern.ReplaceAllString(sb.String(), "[$1]($2)")
}
