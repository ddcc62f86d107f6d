package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/server/auth"
	"github.com/yuanshang000/ds2api/internal/server/resp"
)

// BearerKey is the context key the gateway middleware stores the caller's
// credential under.
const BearerKey = "bearer"

// Auth guards the admin endpoints with a JWT issued at admin login.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			resp.Error(c, http.StatusBadRequest, resp.ErrBadRequest)
			c.Abort()
			return
		}
		if !auth.VerifyJWTToken(strings.TrimPrefix(token, "Bearer ")) {
			resp.Error(c, http.StatusUnauthorized, resp.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GatewayAuth extracts the caller's credential for the completion endpoints.
// OpenAI-shaped clients send Authorization: Bearer, Claude-shaped clients
// send x-api-key. Whether the value is a gateway key or a raw upstream token
// is decided later by the relay.
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var credential string
		if key := c.Request.Header.Get("x-api-key"); key != "" {
			credential = key
		} else if header := c.Request.Header.Get("Authorization"); header != "" {
			credential = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		if credential == "" {
			resp.Error(c, http.StatusUnauthorized, resp.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Set(BearerKey, credential)
		c.Next()
	}
}
