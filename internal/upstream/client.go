package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yuanshang000/ds2api/internal/client"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// Client wraps the upstream HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a client, optionally routed through a proxy.
func New(proxyURL string) (*Client, error) {
	hc, err := client.Get(proxyURL)
	if err != nil {
		return nil, err
	}
	return &Client{httpClient: hc, baseURL: defaultBaseURL}, nil
}

// NewWithBaseURL builds a client against an alternate upstream origin.
func NewWithBaseURL(hc *http.Client, baseURL string) *Client {
	return &Client{httpClient: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// envelope is the upstream's common response wrapper.
type envelope struct {
	Code int           `json:"code"`
	Msg  string        `json:"msg"`
	Data *envelopeData `json:"data"`
}

type envelopeData struct {
	BizCode *int            `json:"biz_code"`
	BizMsg  string          `json:"biz_msg"`
	BizData json.RawMessage `json:"biz_data"`
}

// PowChallenge is the proof-of-work puzzle issued by the upstream. All fields
// are opaque to everything except the solver.
type PowChallenge struct {
	Algorithm  string `json:"algorithm"`
	Challenge  string `json:"challenge"`
	Salt       string `json:"salt"`
	Difficulty int    `json:"difficulty"`
	ExpireAt   int64  `json:"expire_at"`
	Signature  string `json:"signature"`
	TargetPath string `json:"target_path"`
}

func (c *Client) postJSON(ctx context.Context, path, token string, body any, extraHeaders map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for k, v := range BaseHeaders {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	return c.httpClient.Do(req)
}

// decodeEnvelope reads a wrapped response body and returns biz_data, turning
// any non-zero code or biz_code into an *APIError.
func decodeEnvelope(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Msg: "invalid JSON response"}
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}
	if env.Data == nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Msg: "missing data in response"}
	}
	if env.Data.BizCode != nil && *env.Data.BizCode != 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: *env.Data.BizCode, Msg: env.Data.BizMsg}
	}
	return env.Data.BizData, nil
}

// Login authenticates an account and writes the fresh token into it.
func (c *Client) Login(ctx context.Context, acc *model.Account) (string, error) {
	if acc.Password == "" || (acc.Email == "" && acc.Mobile == "") {
		return "", fmt.Errorf("account %s missing credentials", acc.Identifier())
	}

	var payload map[string]any
	if acc.Email != "" {
		payload = map[string]any{
			"email":     acc.Email,
			"password":  acc.Password,
			"device_id": deviceID,
			"os":        "android",
		}
	} else {
		payload = map[string]any{
			"mobile":    acc.Mobile,
			"area_code": nil,
			"password":  acc.Password,
			"device_id": deviceID,
			"os":        "android",
		}
	}

	resp, err := c.postJSON(ctx, loginPath, "", payload, nil)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	bizData, err := decodeEnvelope(resp)
	if err != nil {
		return "", fmt.Errorf("login %s: %w", acc.Identifier(), err)
	}

	var data struct {
		User struct {
			Token string `json:"token"`
		} `json:"user"`
	}
	if err := json.Unmarshal(bizData, &data); err != nil || data.User.Token == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Msg: "login response missing token"}
	}
	acc.Token = data.User.Token
	log.Infof("account %s logged in", acc.Identifier())
	return data.User.Token, nil
}

// CreateSession opens a new upstream chat session and returns its id.
func (c *Client) CreateSession(ctx context.Context, token string) (string, error) {
	resp, err := c.postJSON(ctx, sessionPath, token, map[string]any{"agent": "chat"}, nil)
	if err != nil {
		return "", fmt.Errorf("create session request: %w", err)
	}
	bizData, err := decodeEnvelope(resp)
	if err != nil {
		return "", err
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(bizData, &data); err != nil || data.ID == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Msg: "session response missing id"}
	}
	return data.ID, nil
}

// CreatePowChallenge fetches a fresh proof-of-work challenge.
func (c *Client) CreatePowChallenge(ctx context.Context, token string) (*PowChallenge, error) {
	resp, err := c.postJSON(ctx, powPath, token, map[string]any{"target_path": CompletionPath}, nil)
	if err != nil {
		return nil, fmt.Errorf("pow challenge request: %w", err)
	}
	bizData, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	var data struct {
		Challenge PowChallenge `json:"challenge"`
	}
	if err := json.Unmarshal(bizData, &data); err != nil || data.Challenge.Challenge == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Msg: "pow response missing challenge"}
	}
	if data.Challenge.Difficulty == 0 {
		data.Challenge.Difficulty = 144000
	}
	if data.Challenge.ExpireAt == 0 {
		data.Challenge.ExpireAt = 1680000000
	}
	return &data.Challenge, nil
}
