// Package upstream talks to the DeepSeek chat API.
package upstream

const (
	defaultBaseURL = "https://chat.deepseek.com"

	loginPath   = "/api/v0/users/login"
	sessionPath = "/api/v0/chat_session/create"
	powPath     = "/api/v0/chat/create_pow_challenge"

	// CompletionPath is both the completion endpoint and the PoW target path
	// sent with challenge requests.
	CompletionPath = "/api/v0/chat/completion"

	// PowResponseHeader carries the base64 PoW answer on completion calls.
	PowResponseHeader = "x-ds-pow-response"

	deviceID = "deepseek_to_api"
)

// BaseHeaders mimics the Android client the upstream expects. Accept-Encoding
// is left to the transport so gzip bodies are decompressed transparently.
var BaseHeaders = map[string]string{
	"User-Agent":        "DeepSeek/1.6.11 Android/35",
	"Accept":            "application/json",
	"Content-Type":      "application/json",
	"x-client-platform": "android",
	"x-client-version":  "1.6.11",
	"x-client-locale":   "zh_CN",
	"accept-charset":    "UTF-8",
}

// Business codes the upstream returns for an invalid or expired token.
var authRejectionCodes = map[int]struct{}{
	40001: {},
	40002: {},
	40003: {},
}
