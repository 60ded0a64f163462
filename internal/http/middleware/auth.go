// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and the admin guard.
// Tokens are stateless JWTs; verification is delegated to a TokenParser so
// the middleware stays decoupled from the signing details.
//
// The admin guard deliberately re-reads the stored role instead of trusting
// the token claim: demoting an admin takes effect immediately, not at token
// expiry.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Claims is the verified identity carried by a session token.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// TokenParser verifies a raw bearer token and returns its claims.
type TokenParser interface {
	ParseToken(token string) (*Claims, error)
}

// TokenParserFunc adapts a function to the TokenParser interface.
type TokenParserFunc func(token string) (*Claims, error)

// ParseToken implements TokenParser.
func (f TokenParserFunc) ParseToken(token string) (*Claims, error) { return f(token) }

// RoleLookup fetches the current stored role for a user id.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// bearerToken extracts the token from an "Authorization: Bearer <t>" header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// authError mirrors the handlers' error envelope without importing them;
// importing handlers here would create a cycle.
func authError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// setIdentity stores the verified identity in the Gin context for handlers
// and the rate limiter.
func setIdentity(c *gin.Context, claims *Claims) {
	c.Set("userID", claims.UserID)
	c.Set("userRole", claims.Role)
}

// RequireAuth returns a middleware that rejects requests without a valid
// bearer token and stores the verified identity in the context.
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			authError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := parser.ParseToken(tok)
		if err != nil {
			authError(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth returns a middleware that attaches an identity when a valid
// bearer token is present and silently continues anonymously otherwise. Used
// on public intake endpoints so logged-in users get their requests attributed.
func OptionalAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if claims, err := parser.ParseToken(tok); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireAdmin returns a middleware that allows only admins through. It must
// run after RequireAuth. The stored role is re-checked on every request.
func RequireAdmin(lookup RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := c.Get("userID")
		id := asString(uid)
		if id == "" {
			authError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		role, err := lookup(c.Request.Context(), id)
		if err != nil {
			authError(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		if role != "admin" {
			authError(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Set("userRole", role)
		c.Next()
	}
}
