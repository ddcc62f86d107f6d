package upstream

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func fakeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantData string
		wantCode int
		wantErr  bool
	}{
		{
			name:     "success",
			status:   200,
			body:     `{"code":0,"data":{"biz_code":0,"biz_data":{"id":"abc"}}}`,
			wantData: `{"id":"abc"}`,
		},
		{
			name:    "http error",
			status:  500,
			body:    `{"code":0,"msg":"server down"}`,
			wantErr: true,
		},
		{
			name:     "envelope code",
			status:   200,
			body:     `{"code":40003,"msg":"token expired"}`,
			wantCode: 40003,
			wantErr:  true,
		},
		{
			name:     "biz code",
			status:   200,
			body:     `{"code":0,"data":{"biz_code":40001,"biz_msg":"unauthorized"}}`,
			wantCode: 40001,
			wantErr:  true,
		},
		{
			name:    "missing data",
			status:  200,
			body:    `{"code":0}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			status:  200,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := decodeEnvelope(fakeResponse(tc.status, tc.body))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected *APIError, got %T", err)
				}
				if tc.wantCode != 0 && apiErr.Code != tc.wantCode {
					t.Errorf("code = %d, want %d", apiErr.Code, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got, want any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("biz_data not json: %v", err)
			}
			if err := json.Unmarshal([]byte(tc.wantData), &want); err != nil {
				t.Fatal(err)
			}
			if string(data) != tc.wantData {
				t.Errorf("biz_data = %s, want %s", data, tc.wantData)
			}
		})
	}
}

func TestIsAuthRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"rejection code", &APIError{StatusCode: 200, Code: 40002}, true},
		{"token message", &APIError{StatusCode: 200, Code: 1, Msg: "invalid Token"}, true},
		{"unauthorized message", &APIError{StatusCode: 403, Msg: "Unauthorized request"}, true},
		{"unrelated api error", &APIError{StatusCode: 500, Code: 1, Msg: "internal"}, false},
		{"wrapped", &APIError{Code: 40001}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAuthRejection(tc.err); got != tc.want {
				t.Errorf("IsAuthRejection() = %v, want %v", got, tc.want)
			}
		})
	}
}
