package authmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/authz"
)

const claimsKey = "taskhub.claims"

// Authenticator resolves a raw bearer token to identity claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (authz.Claims, error)
}

// RequireAuth rejects requests without a usable token. A missing or
// malformed credential is 401; a token that fails verification is 403.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractAccessToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

			return
		}

		claims, err := a.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			kind := apperr.KindOf(err)
			if kind == apperr.Internal {
				_ = c.Error(err)
			}
			c.AbortWithStatusJSON(kind.Status(), gin.H{"error": apperr.PublicMessage(err)})

			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims RequireAuth stored on the context.
func ClaimsFrom(c *gin.Context) (authz.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return authz.Claims{}, false
	}
	claims, ok := v.(authz.Claims)
	return claims, ok
}

// --- helpers ---

func extractAccessToken(c *gin.Context) (string, error) {
	// 1) Authorization: Bearer <token>
	header := c.GetHeader("Authorization")
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			if tok := strings.TrimSpace(header[7:]); tok != "" {
				return tok, nil
			}
		}
		return "", errors.New("malformed authorization header")
	}

	// 2) cookie fallback
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", errors.New("missing access token")
}
