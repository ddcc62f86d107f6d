package upstream

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-success answer from the upstream API, either at the HTTP
// level or via the body's business code.
type APIError struct {
	StatusCode int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error: status=%d code=%d msg=%q", e.StatusCode, e.Code, e.Msg)
}

// IsAuthRejection reports whether an error indicates an invalid or expired
// token, which makes the orchestrator refresh the token or fail over to a
// different account.
func IsAuthRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if _, ok := authRejectionCodes[apiErr.Code]; ok {
		return true
	}
	msg := strings.ToLower(apiErr.Msg)
	return strings.Contains(msg, "token") || strings.Contains(msg, "unauthorized")
}
