package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/services"
)

const (
	AccountIDKey        = "accountID"
	UsernameKey         = "username"
	SessionCookie       = "auth_token"
	AccountIDParam      = "account_id"
	EndpointTokenHeader = "X-Endpoint-Token"
)

// TokenValidator is the part of the auth service the middleware needs.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// AuthMiddleware requires a valid session token from the Authorization header or
// the session cookie.
func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(AccountIDKey, claims.AccountID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// ResolveAccount establishes the calling account for operator routes. A session
// wins; without one, and only when allowParam is set, the account_id query
// parameter is trusted as the caller's identity.
func ResolveAccount(auth TokenValidator, allowParam bool) gin.HandlerFunc {
	return resolveAccount(auth, allowParam, true)
}

// OptionalAccount resolves identity like ResolveAccount but lets anonymous
// requests through with no account set. A bad session token is still rejected.
func OptionalAccount(auth TokenValidator, allowParam bool) gin.HandlerFunc {
	return resolveAccount(auth, allowParam, false)
}

func resolveAccount(auth TokenValidator, allowParam, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c); token != "" {
			claims, err := auth.ValidateToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			c.Set(AccountIDKey, claims.AccountID)
			c.Set(UsernameKey, claims.Username)
			c.Next()
			return
		}
		if allowParam {
			if accountID := strings.TrimSpace(c.Query(AccountIDParam)); accountID != "" {
				c.Set(AccountIDKey, accountID)
				c.Next()
				return
			}
		}
		if required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account identity required"})
			return
		}
		c.Next()
	}
}

// GetAccountID returns the account resolved for this request, or "".
func GetAccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

// Actor names the caller for audit records.
func Actor(c *gin.Context) string {
	if name := c.GetString(UsernameKey); name != "" {
		return name
	}
	return "account:" + GetAccountID(c)
}

func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(header)
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}
