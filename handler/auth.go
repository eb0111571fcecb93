package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/middleware"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
	Reviewer  string `json:"reviewer"`
}

// authenticate checks the credentials against the configured users
func (h *AuthHandler) authenticate(username, password string) *config.User {
	user := h.config.FindUser(username)
	if user == nil {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return nil
	}
	return user
}

// Login handles API login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user := h.authenticate(req.Username, req.Password)
	if user == nil {
		logger.Warn(c.Request.Context(), "login failed", "username", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	// Generate token
	token, expiresAt, err := middleware.GenerateToken(user.Username, user.Name(), &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Username:  user.Username,
		Reviewer:  user.Name(),
	})
}

// GetCurrentUser returns the current user info
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": middleware.GetUsername(c),
		"reviewer": middleware.GetReviewer(c),
	})
}

// LoginPage renders the sign-in form
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if !h.config.Auth.Enabled {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.renderLogin(c, http.StatusOK, "", "")
}

// LoginForm signs the reviewer in and stores the token in the session cookie
func (h *AuthHandler) LoginForm(c *gin.Context) {
	if !h.config.Auth.Enabled {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	username := c.PostForm("username")
	user := h.authenticate(username, c.PostForm("password"))
	if user == nil {
		logger.Warn(c.Request.Context(), "login failed", "username", username)
		h.renderLogin(c, http.StatusUnauthorized, username, "Invalid username or password")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user.Username, user.Name(), &h.config.Auth)
	if err != nil {
		h.renderLogin(c, http.StatusInternalServerError, username, "Failed to sign in")
		return
	}

	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) renderLogin(c *gin.Context, status int, username, errMsg string) {
	c.HTML(status, "login.html", gin.H{
		"Title":    h.config.Report.Title,
		"Username": username,
		"Error":    errMsg,
	})
}
