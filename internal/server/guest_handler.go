package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"poll-service/internal/identity"
)

// GuestHandler issues throwaway guest identities so the app is usable
// without an account.
type GuestHandler struct {
	tokens *identity.GuestTokens
}

func NewGuestHandler(tokens *identity.GuestTokens) *GuestHandler {
	return &GuestHandler{tokens: tokens}
}

// Login godoc
// @Summary      Create a guest identity
// @Description  Returns a short-lived token for a freshly generated guest user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /guest [post]
func (h *GuestHandler) Login(c *gin.Context) {
	caller, token, err := h.tokens.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "guest login failed", "code": "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": caller})
}
