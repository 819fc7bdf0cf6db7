package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Keys the auth middleware sets on the gin context.
const (
	ContextUserID      = "user_id"
	ContextWorkspaceID = "workspace_id"
)

// Claims is the bearer token payload. WorkspaceID scopes every automation
// and card call made with the token.
type Claims struct {
	UserID      string `json:"user_id,omitempty"`
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// Subject returns user_id, falling back to the registered sub claim.
func (c *Claims) Subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// IssueToken signs an HS256 token for user in workspace.
func IssueToken(secret, userID, workspaceID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, algorithm and time claims.
func ParseToken(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.WorkspaceID == "" {
		return nil, errors.New("token has no workspace")
	}
	return claims, nil
}

// AuthMiddleware enforces Authorization: Bearer <jwt> on protected routes and
// injects user_id and workspace_id into the gin context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	secret := ""
	if cfg != nil {
		secret = cfg.JWT.Secret
	}
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		// browsers cannot set headers on a websocket handshake
		if ah == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if qt := c.Query("access_token"); qt != "" {
				ah = "Bearer " + qt
			}
		}
		if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "missing bearer token",
			})
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])
		if token == "" || secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "invalid token or server misconfig",
			})
			return
		}
		claims, err := ParseToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": err.Error(),
			})
			return
		}
		c.Set(ContextUserID, claims.Subject())
		c.Set(ContextWorkspaceID, claims.WorkspaceID)
		c.Next()
	}
}
