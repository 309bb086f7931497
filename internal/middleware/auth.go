package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/security"
)

const principalKey = "principal"

// TokenParser verifies a bearer access token.
type TokenParser interface {
	ParseAccessToken(token string) (*security.AccessClaims, error)
}

// Auth accepts any unexpired access token signed with the current secret.
// Access tokens are not checked against the session table.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := parser.ParseAccessToken(tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired access token")
			return
		}

		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by Auth.
func CurrentPrincipal(c *gin.Context) (security.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return security.Principal{}, false
	}
	p, ok := v.(security.Principal)
	return p, ok
}
