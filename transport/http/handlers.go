package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/service"
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

// Nonce issues a login challenge for a wallet
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		Address string `json:"eth_address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	nonce, err := h.authService.CreateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify checks the signed challenge and returns a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"eth_address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, token, err := h.authService.Login(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		// Unknown wallets look the same as bad signatures
		if errors.Is(err, core.ErrUnknownIdentity) || errors.Is(err, core.ErrUnauthorized) {
			_ = c.Error(err)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication failed"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
	})
}

// Me returns the identity behind the session
func (h *AuthHandlers) Me(c *gin.Context) {
	// Session is set by the auth middleware
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	identity, err := h.authService.Identity(c.Request.Context(), session)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          strconv.FormatInt(identity.ID, 10),
		"eth_address": identity.Address,
		"role":        identity.Role,
		"status":      identity.Status,
	})
}
