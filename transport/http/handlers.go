package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/service"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextWallet = "wallet"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           string    `json:"user_id"`
	Address          string    `json:"address"`
}

func newTokenResponse(pair core.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		UserID:           pair.UserID,
		Address:          pair.Address,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.ErrInvalidInput)
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), req.Address, c.ClientIP())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      challenge.Nonce,
		"message":    challenge.Message,
		"expires_at": challenge.ExpiresAt,
	})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.ErrInvalidInput)
		return
	}

	pair, err := h.authService.VerifyAndIssue(c.Request.Context(), req.Address, req.Signature, req.Nonce, c.ClientIP())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.ErrInvalidInput)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// Logout handles session logout. Unknown or revoked tokens still log out.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.ErrInvalidInput)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// LogoutAll revokes every session of the authenticated user
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	revoked, err := h.authService.LogoutAll(c.Request.Context(), c.GetString(ContextUserID))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out", "revoked": revoked})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString(ContextUserID),
		"address": c.GetString(ContextWallet),
	})
}

// Authorize checks if a user is authorized. Reaching it means the middleware
// accepted the token.
func (h *AuthHandlers) Authorize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    c.GetString(ContextWallet),
	})
}
