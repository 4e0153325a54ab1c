package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/auth"
	"idleassets/api/internal/cache"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyEmail holds the authenticated user's email.
	ContextKeyEmail = "email"
	// ContextKeyTokenID and ContextKeyTokenExpiry identify the presented token for sign-out.
	ContextKeyTokenID     = "tokenID"
	ContextKeyTokenExpiry = "tokenExpiry"
)

// AccessTokenQueryParam carries the token for clients that cannot set headers,
// such as browser websockets.
const AccessTokenQueryParam = "access_token"

// BearerToken extracts the credential from the Authorization header or the
// access_token query parameter. ok is false when neither is present.
func BearerToken(c *gin.Context) (token string, ok bool, err error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", true, fmt.Errorf("Authorization header format must be Bearer {token}")
		}
		return parts[1], true, nil
	}
	if q := c.Query(AccessTokenQueryParam); q != "" {
		return q, true, nil
	}
	return "", false, nil
}

// AuthMiddleware creates a Gin middleware for JWT authentication. Tokens on
// the revocation list are rejected.
func AuthMiddleware(jwtSecret string, revoker cache.TokenRevoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, present, err := BearerToken(c)
		if !present {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		if revoker != nil && claims.ID != "" {
			revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Printf("AuthMiddleware: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to verify credential"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been signed out"})
				return
			}
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ContextKeyTokenExpiry, claims.ExpiresAt.Time)
		} else {
			c.Set(ContextKeyTokenExpiry, time.Time{})
		}

		c.Next()
	}
}

// UserID returns the authenticated user set by AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
