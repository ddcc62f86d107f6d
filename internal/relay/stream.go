package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/yuanshang000/ds2api/internal/decode"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

const maxSSEEventSize = 1024 * 1024

// Timing rules for pushing a stream to the client.
const (
	// KeepAliveInterval is how often a comment line is sent while the
	// upstream is quiet.
	KeepAliveInterval = 5 * time.Second
	// StreamIdleTimeout force-ends a stream that produced content but then
	// went silent.
	StreamIdleTimeout = 30 * time.Second
	// MaxKeepAliveCount force-ends a stream after this many consecutive
	// keep-alives once content has been seen.
	MaxKeepAliveCount = 10
)

// StreamEvent is one decoded batch from the upstream completion stream.
type StreamEvent struct {
	Fragments []decode.Fragment
	// Filtered marks an upstream content-moderation stop.
	Filtered bool
	// Finished marks the regular end of the stream.
	Finished bool
}

// Stream decodes the completion response body into events. The returned
// channel is closed once the stream ends; the response body is closed by the
// producer. Cancelling ctx unblocks the producer when the consumer stops
// reading, so the upstream connection is always released.
func Stream(ctx context.Context, resp *http.Response, thinkingEnabled bool) <-chan StreamEvent {
	events := make(chan StreamEvent, 64)

	carry := decode.KindText
	if thinkingEnabled {
		carry = decode.KindThinking
	}

	go func() {
		defer close(events)
		defer resp.Body.Close()

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		readCfg := &sse.ReadConfig{MaxEventSize: maxSSEEventSize}
		for ev, err := range sse.Read(resp.Body, readCfg) {
			if err != nil {
				log.Warnf("completion stream read error: %v", err)
				break
			}
			chunk := decode.ParseData([]byte(ev.Data))
			if chunk == nil {
				continue
			}
			if chunk.Done {
				emit(StreamEvent{Finished: true})
				return
			}
			if chunk.Error != nil || string(chunk.Code) == `"content_filter"` {
				log.Warnf("upstream filtered the response")
				emit(StreamEvent{Filtered: true})
				return
			}

			var frags []decode.Fragment
			var finished bool
			frags, finished, carry = decode.DecodeChunk(chunk, thinkingEnabled, carry)
			if finished {
				emit(StreamEvent{Finished: true})
				return
			}
			if len(frags) > 0 {
				if !emit(StreamEvent{Fragments: frags}) {
					return
				}
			}
		}
		emit(StreamEvent{Finished: true})
	}()

	return events
}

// Collect drains a completion stream into separate thinking and text buffers.
// The filtered return reports an upstream moderation stop.
func Collect(ctx context.Context, resp *http.Response, thinkingEnabled, searchEnabled bool) (thinking, text string, filtered bool) {
	var thinkingBuf, textBuf []byte
	for ev := range Stream(ctx, resp, thinkingEnabled) {
		if ev.Filtered {
			filtered = true
			break
		}
		if ev.Finished {
			break
		}
		for _, frag := range ev.Fragments {
			if decode.IsCitation(frag.Content, searchEnabled) {
				continue
			}
			if frag.Kind == decode.KindThinking {
				thinkingBuf = append(thinkingBuf, frag.Content...)
			} else {
				textBuf = append(textBuf, frag.Content...)
			}
		}
	}
	return string(thinkingBuf), string(textBuf), filtered
}
