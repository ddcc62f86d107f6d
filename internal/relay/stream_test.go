package relay

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func sseResponse(events ...string) *http.Response {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("data: ")
		b.WriteString(ev)
		b.WriteString("\n\n")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(b.String())),
	}
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name            string
		events          []string
		thinkingEnabled bool
		searchEnabled   bool
		wantThinking    string
		wantText        string
		wantFiltered    bool
	}{
		{
			name: "plain text",
			events: []string{
				`{"p":"response/content","v":"你好"}`,
				`{"p":"response/content","v":"！"}`,
				`{"p":"response/status","v":"FINISHED"}`,
			},
			wantText: "你好！",
		},
		{
			name:            "thinking then answer",
			thinkingEnabled: true,
			events: []string{
				`{"v":"Let me think."}`,
				`{"p":"response","o":"BATCH","v":[{"p":"fragments","o":"APPEND","v":[{"type":"RESPONSE"}]}]}`,
				`{"v":"Hello"}`,
				`{"v":" world"}`,
				`{"p":"response/status","v":"FINISHED"}`,
			},
			wantThinking: "Let me think.",
			wantText:     "Hello world",
		},
		{
			name: "done sentinel ends stream",
			events: []string{
				`{"p":"response/content","v":"partial"}`,
				`[DONE]`,
				`{"p":"response/content","v":"after"}`,
			},
			wantText: "partial",
		},
		{
			name: "content filter",
			events: []string{
				`{"p":"response/content","v":"ok so far"}`,
				`{"error":{"message":"blocked"}}`,
			},
			wantText:     "ok so far",
			wantFiltered: true,
		},
		{
			name:          "citations dropped when searching",
			searchEnabled: true,
			events: []string{
				`{"p":"response/content","v":"[citation:3]"}`,
				`{"p":"response/content","v":"answer"}`,
				`{"p":"response/status","v":"FINISHED"}`,
			},
			wantText: "answer",
		},
		{
			name: "citations kept without search",
			events: []string{
				`{"p":"response/content","v":"[citation:3]"}`,
				`{"p":"response/status","v":"FINISHED"}`,
			},
			wantText: "[citation:3]",
		},
		{
			name: "status metadata skipped",
			events: []string{
				`{"p":"response/search_status","v":"searching"}`,
				`{"p":"response/elapsed_secs","v":"3"}`,
				`{"p":"response/content","v":"done"}`,
				`{"p":"response/status","v":"FINISHED"}`,
			},
			wantText: "done",
		},
		{
			name:   "truncated stream still terminates",
			events: []string{`{"p":"response/content","v":"tail"}`},
			// no FINISHED event; the reader hitting EOF finishes the stream
			wantText: "tail",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			thinking, text, filtered := Collect(context.Background(), sseResponse(tc.events...), tc.thinkingEnabled, tc.searchEnabled)
			if thinking != tc.wantThinking {
				t.Errorf("thinking = %q, want %q", thinking, tc.wantThinking)
			}
			if text != tc.wantText {
				t.Errorf("text = %q, want %q", text, tc.wantText)
			}
			if filtered != tc.wantFiltered {
				t.Errorf("filtered = %v, want %v", filtered, tc.wantFiltered)
			}
		})
	}
}

func TestStreamEventOrder(t *testing.T) {
	resp := sseResponse(
		`{"p":"response/content","v":"a"}`,
		`{"p":"response/content","v":"b"}`,
		`{"p":"response/status","v":"FINISHED"}`,
	)
	var contents []string
	var finished bool
	for ev := range Stream(context.Background(), resp, false) {
		if ev.Finished {
			finished = true
			continue
		}
		for _, frag := range ev.Fragments {
			contents = append(contents, frag.Content)
		}
	}
	if !finished {
		t.Error("stream never reported Finished")
	}
	if got := strings.Join(contents, ""); got != "ab" {
		t.Errorf("content order = %q, want %q", got, "ab")
	}
}

type trackedBody struct {
	io.Reader
	closed chan struct{}
	once   sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// A consumer that stops reading must not strand the producer on the channel
// send; cancelling the stream context has to release the upstream body.
func TestStreamConsumerCancelReleasesBody(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("data: {\"p\":\"response/content\",\"v\":\"x\"}\n\n")
	}
	body := &trackedBody{Reader: strings.NewReader(sb.String()), closed: make(chan struct{})}
	resp := &http.Response{StatusCode: http.StatusOK, Body: body}

	ctx, cancel := context.WithCancel(context.Background())
	events := Stream(ctx, resp, false)

	// read one event, then walk away like a disconnected client
	<-events
	cancel()

	select {
	case <-body.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("response body never closed after the consumer stopped reading")
	}
	for range events {
	}
}
