package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookie carries the token for the HTML pages
	SessionCookie = "tender_session"
	// AnonymousUser is the owner of every analysis when auth is disabled
	AnonymousUser = "anonymous"
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	Reviewer string `json:"reviewer"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new JWT token for a user
func GenerateToken(username, reviewer string, cfg *config.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		Username: username,
		Reviewer: reviewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseToken validates the token and returns its claims
func ParseToken(tokenString string, cfg *config.AuthConfig) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware validates the JWT for API routes and answers 401 in JSON
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, func(c *gin.Context, msg string) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
	})
}

// WebAuthMiddleware validates the session cookie for HTML pages and sends
// unauthenticated visitors to the login page
func WebAuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, func(c *gin.Context, _ string) {
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
	})
}

func authenticate(cfg *config.AuthConfig, reject func(c *gin.Context, msg string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			setUser(c, AnonymousUser, AnonymousUser)
			c.Next()
			return
		}

		tokenString, msg := extractToken(c)
		if tokenString == "" {
			reject(c, msg)
			return
		}

		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			reject(c, "Invalid or expired token")
			return
		}

		setUser(c, claims.Username, claims.Reviewer)
		c.Next()
	}
}

// extractToken reads "Bearer <token>" first, then the session cookie
func extractToken(c *gin.Context) (string, string) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", "Invalid authorization header format"
		}
		return parts[1], ""
	}

	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, ""
	}
	return "", "Authorization required"
}

func setUser(c *gin.Context, username, reviewer string) {
	if reviewer == "" {
		reviewer = username
	}

	// Store user info in context
	c.Set("username", username)
	c.Set("reviewer", reviewer)

	ctx := context.WithValue(c.Request.Context(), logger.ReviewerKey, username)
	c.Request = c.Request.WithContext(ctx)
}

// GetUsername gets the username from context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get("username"); exists {
		return username.(string)
	}
	return ""
}

// GetReviewer gets the name printed on reports
func GetReviewer(c *gin.Context) string {
	if reviewer, exists := c.Get("reviewer"); exists {
		return reviewer.(string)
	}
	return ""
}
