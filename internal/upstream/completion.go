package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// CompletionRequest carries everything needed for one completion call.
type CompletionRequest struct {
	SessionID       string
	Prompt          string
	ThinkingEnabled bool
	SearchEnabled   bool
	Token           string
	PowResponse     string
}

// Completion starts a streaming completion. The caller owns the returned
// response body and must close it. Transient failures are retried with a
// constant backoff; an auth rejection is returned immediately so the caller
// can rotate accounts.
func (c *Client) Completion(ctx context.Context, req CompletionRequest, maxAttempts int) (*http.Response, error) {
	payload := map[string]any{
		"chat_session_id":   req.SessionID,
		"parent_message_id": nil,
		"prompt":            req.Prompt,
		"ref_file_ids":      []string{},
		"thinking_enabled":  req.ThinkingEnabled,
		"search_enabled":    req.SearchEnabled,
	}
	headers := map[string]string{PowResponseHeader: req.PowResponse}

	var resp *http.Response
	operation := func() error {
		r, err := c.postJSON(ctx, CompletionPath, req.Token, payload, headers)
		if err != nil {
			return fmt.Errorf("completion request: %w", err)
		}
		if r.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: r.StatusCode, Msg: "completion rejected"}
			r.Body.Close()
			if r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, func(err error, _ time.Duration) {
		log.Warnf("completion attempt failed, retrying: %v", err)
	}); err != nil {
		return nil, err
	}
	return resp, nil
}
