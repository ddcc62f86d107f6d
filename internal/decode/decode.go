// Package decode parses the upstream's delta-event stream into ordered
// content fragments.
package decode

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// Kind labels the channel a fragment belongs to.
type Kind string

const (
	KindText     Kind = "text"
	KindThinking Kind = "thinking"
)

// Fragment is one ordered piece of model output.
type Fragment struct {
	Kind    Kind
	Content string
}

// Chunk is a single decoded stream event. Path and Op address a location in
// the upstream's incremental response document; V carries the delta value.
type Chunk struct {
	Path  string          `json:"p"`
	Op    string          `json:"o"`
	V     json.RawMessage `json:"v"`
	Code  json.RawMessage `json:"code"`
	Error json.RawMessage `json:"error"`

	Done bool `json:"-"`
}

// skipKeywords are path substrings that carry status metadata, not content.
var skipKeywords = []string{
	"quasi_status",
	"elapsed_secs",
	"token_usage",
	"pending_fragment",
	"conversation_mode",
	"fragments/-1/status",
	"fragments/-2/status",
	"fragments/-3/status",
}

var dataPrefix = []byte("data:")

// ParseLine decodes one raw SSE line. It returns nil for blank lines,
// non-data lines and malformed payloads.
func ParseLine(raw []byte) *Chunk {
	if len(raw) == 0 || !bytes.HasPrefix(raw, dataPrefix) {
		return nil
	}
	return ParseData(bytes.TrimSpace(raw[len(dataPrefix):]))
}

// ParseData decodes an event payload with the data prefix already stripped.
func ParseData(data []byte) *Chunk {
	if len(data) == 0 {
		return nil
	}
	if bytes.Equal(data, []byte("[DONE]")) {
		return &Chunk{Done: true}
	}
	var chunk Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		log.Warnf("malformed stream chunk: %v", err)
		return nil
	}
	return &chunk
}

func shouldSkip(path string) bool {
	if path == "response/search_status" {
		return true
	}
	for _, kw := range skipKeywords {
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}

func isSearchResult(item map[string]any) bool {
	_, hasURL := item["url"]
	_, hasTitle := item["title"]
	return hasURL && hasTitle
}

// kindForFragmentType maps the upstream's fragment type tags. The second
// return reports whether the tag was recognized.
func kindForFragmentType(t string) (Kind, bool) {
	switch strings.ToUpper(t) {
	case "THINK", "THINKING":
		return KindThinking, true
	case "RESPONSE":
		return KindText, true
	}
	return KindText, false
}

// extractFromItem handles items that carry explicit content and type fields.
func extractFromItem(item map[string]any, def Kind) (Fragment, bool) {
	content, hasContent := item["content"].(string)
	typeTag, hasType := item["type"]
	if !hasContent || !hasType || content == "" {
		return Fragment{}, false
	}
	kind := def
	if tag, ok := typeTag.(string); ok {
		if k, known := kindForFragmentType(tag); known {
			kind = k
		}
	}
	return Fragment{Kind: kind, Content: content}, true
}

// extractRecursive walks one level of nested delta items. The second return
// is true when a terminal status was seen.
func extractRecursive(items []any, def Kind) ([]Fragment, bool) {
	var out []Fragment
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		itemPath, _ := item["p"].(string)
		itemV := item["v"]

		if isSearchResult(item) {
			continue
		}
		// only an exact status path terminates here; fragment status paths
		// are plain metadata
		if itemPath == "status" && itemV == "FINISHED" {
			return out, true
		}
		if shouldSkip(itemPath) {
			continue
		}
		if frag, ok := extractFromItem(item, def); ok {
			out = append(out, frag)
			continue
		}

		kind := def
		switch {
		case strings.Contains(itemPath, "thinking"):
			kind = KindThinking
		case strings.Contains(itemPath, "content"), itemPath == "response", itemPath == "fragments":
			kind = KindText
		}

		switch v := itemV.(type) {
		case string:
			if v != "" && v != "FINISHED" {
				out = append(out, Fragment{Kind: kind, Content: v})
			}
		case []any:
			for _, innerRaw := range v {
				switch inner := innerRaw.(type) {
				case map[string]any:
					final := kind
					if tag, ok := inner["type"].(string); ok {
						if k, known := kindForFragmentType(tag); known {
							final = k
						}
					}
					if content, ok := inner["content"].(string); ok && content != "" {
						out = append(out, Fragment{Kind: final, Content: content})
					}
				case string:
					if inner != "" {
						out = append(out, Fragment{Kind: kind, Content: inner})
					}
				}
			}
		}
	}
	return out, false
}

// DecodeChunk extracts content fragments from one stream chunk.
//
// carry is the fragment kind currently being appended to; chunks with an
// empty path inherit it. The returned carry must be fed into the next call.
func DecodeChunk(chunk *Chunk, thinkingEnabled bool, carry Kind) ([]Fragment, bool, Kind) {
	if chunk == nil || chunk.V == nil {
		return nil, false, carry
	}
	path := chunk.Path
	if shouldSkip(path) {
		return nil, false, carry
	}

	var v any
	if err := json.Unmarshal(chunk.V, &v); err != nil {
		return nil, false, carry
	}

	if path == "response/status" {
		if s, ok := v.(string); ok && s == "FINISHED" {
			return nil, true, carry
		}
	}

	newCarry := carry

	// fragment-type transitions arrive as APPEND batches
	if path == "response" {
		if batch, ok := v.([]any); ok {
			for _, rawItem := range batch {
				item, ok := rawItem.(map[string]any)
				if !ok || item["p"] != "fragments" || item["o"] != "APPEND" {
					continue
				}
				frags, _ := item["v"].([]any)
				for _, rawFrag := range frags {
					frag, ok := rawFrag.(map[string]any)
					if !ok {
						continue
					}
					if tag, ok := frag["type"].(string); ok {
						if k, known := kindForFragmentType(tag); known {
							newCarry = k
						}
					}
				}
			}
		}
	}
	if strings.Contains(path, "response/fragments") {
		if frags, ok := v.([]any); ok {
			for _, rawFrag := range frags {
				frag, ok := rawFrag.(map[string]any)
				if !ok {
					continue
				}
				if tag, ok := frag["type"].(string); ok {
					if k, known := kindForFragmentType(tag); known {
						newCarry = k
					}
				}
			}
		}
	}

	var kind Kind
	switch {
	case path == "response/thinking_content":
		kind = KindThinking
	case path == "response/content":
		kind = KindText
	case strings.Contains(path, "response/fragments") && strings.Contains(path, "/content"):
		kind = newCarry
	case path == "":
		if thinkingEnabled {
			kind = newCarry
		} else {
			kind = KindText
		}
	default:
		kind = KindText
	}

	switch value := v.(type) {
	case string:
		if value == "FINISHED" && (path == "" || path == "status") {
			return nil, true, newCarry
		}
		if value != "" {
			return []Fragment{{Kind: kind, Content: value}}, false, newCarry
		}
	case []any:
		frags, finished := extractRecursive(value, kind)
		if finished {
			return nil, true, newCarry
		}
		return frags, false, newCarry
	}
	return nil, false, newCarry
}

// ExtractContent is the single-channel view of a chunk, used where thinking
// and text do not need separate tracking. It also surfaces upstream content
// moderation as an early finish.
func ExtractContent(chunk *Chunk) (string, Kind, bool) {
	if chunk == nil {
		return "", KindText, false
	}
	if chunk.Done {
		return "", KindText, true
	}
	if chunk.Error != nil || string(chunk.Code) == `"content_filter"` {
		log.Warnf("upstream filtered the response")
		return "", KindText, true
	}
	if chunk.V == nil {
		return "", KindText, false
	}

	kind := KindText
	switch chunk.Path {
	case "response/search_status":
		return "", KindText, false
	case "response/thinking_content":
		kind = KindThinking
	case "response/content":
		kind = KindText
	}

	var v any
	if err := json.Unmarshal(chunk.V, &v); err != nil {
		return "", kind, false
	}
	switch value := v.(type) {
	case string:
		if value == "FINISHED" {
			return "", kind, true
		}
		return value, kind, false
	case []any:
		for _, rawItem := range value {
			if item, ok := rawItem.(map[string]any); ok {
				if item["p"] == "status" && item["v"] == "FINISHED" {
					return "", kind, true
				}
			}
		}
	}
	return "", kind, false
}

// IsCitation reports whether a fragment is a search citation marker that
// should be dropped from client-visible output.
func IsCitation(text string, searchEnabled bool) bool {
	return searchEnabled && strings.HasPrefix(text, "[citation:")
}
