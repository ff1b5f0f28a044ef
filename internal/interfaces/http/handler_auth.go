package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const resetSentMessage = "If the account exists, a reset link has been sent"

func (h *Handler) registerAuthRoutes(g *gin.RouterGroup) {
	if h.svc.Auth == nil {
		return
	}
	auth := g.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.middleware.LoginLimiter(), h.Login)
	auth.POST("/logout", h.Logout)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/reset-password", h.ResetPassword)
}

func (h *Handler) Register(c *gin.Context) {
	var in usecases.RegisterInput
	if !bindJSON(c, &in, http.StatusUnprocessableEntity) {
		return
	}
	user, token, err := h.svc.Auth.Register(c.Request.Context(), in)
	if errors.Is(err, usecases.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"message": "Email is already registered"})
		return
	}
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var in usecases.LoginInput
	if !bindJSON(c, &in, http.StatusUnprocessableEntity) {
		return
	}
	user, token, err := h.svc.Auth.Login(c.Request.Context(), in)
	if err != nil {
		fail(c, err, "")
		return
	}
	h.middleware.ResetLoginAttempts(c)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Logout is stateless; the client drops its token.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var in struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &in, http.StatusUnprocessableEntity) {
		return
	}
	token, err := h.svc.Auth.ForgotPassword(c.Request.Context(), in.Email)
	if err != nil {
		fail(c, err, "")
		return
	}
	resp := gin.H{"message": resetSentMessage}
	if token != "" {
		resp["resetToken"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var in struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if !bindJSON(c, &in, http.StatusUnprocessableEntity) {
		return
	}
	if err := h.svc.Auth.ResetPassword(c.Request.Context(), in.Token, in.Password); err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
