package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/personaverse/persona-chat/internal/auth"
	"github.com/personaverse/persona-chat/internal/common"
)

const (
	// CookieName carries the signed token.
	CookieName = "token"

	UserIDKey   = "current_user_id"
	UsernameKey = "current_username"
	JTIKey      = "current_jti"
)

// TokenRevoker reports whether a token id has been denylisted by logout.
// A nil revoker disables the check.
type TokenRevoker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthRequired verifies the signed cookie and stores the caller identity
// in the gin context.
func AuthRequired(secret string, revoker TokenRevoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(CookieName)
		if err != nil || tokenStr == "" {
			common.Fail(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		claims, err := auth.ParseJWT(tokenStr, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
			if err == nil && revoked {
				common.Fail(c, http.StatusUnauthorized, "Token has been revoked")
				c.Abort()
				return
			}
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(JTIKey, claims.ID)
		c.Next()
	}
}

// UserID returns the authenticated user id placed by AuthRequired.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
