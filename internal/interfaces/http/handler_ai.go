package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/infrastructure/llm"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

func (h *Handler) registerAIRoutes(g *gin.RouterGroup) {
	if h.svc.AI == nil {
		return
	}
	ai := g.Group("/ai")
	ai.GET("/settings", h.GetAISettings)
	ai.PUT("/settings", h.UpdateAISettings)
	ai.POST("/test", h.TestAIConnection)
	ai.GET("/providers", h.GetAIProviders)
	ai.POST("/switch", h.SwitchAIProvider)
}

func (h *Handler) GetAISettings(c *gin.Context) {
	settings, err := h.svc.AI.Settings(c.Request.Context(), currentUserID(c), c.Query("provider"))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) UpdateAISettings(c *gin.Context) {
	var in usecases.SettingsInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	settings, err := h.svc.AI.UpdateSettings(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// TestAIConnection reports provider failures with their scrubbed message.
func (h *Handler) TestAIConnection(c *gin.Context) {
	var in usecases.TestInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	res, err := h.svc.AI.Test(c.Request.Context(), currentUserID(c), in)
	var apiErr *llm.APIError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.As(err, &apiErr), errors.Is(err, llm.ErrMissingAPIKey):
		zap.L().Warn("ai: test connection failed", zap.Int("user_id", currentUserID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	default:
		fail(c, err, "")
	}
}

func (h *Handler) GetAIProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.AI.Providers()})
}

func (h *Handler) SwitchAIProvider(c *gin.Context) {
	var in struct {
		Provider string `json:"provider" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	settings, err := h.svc.AI.Switch(c.Request.Context(), currentUserID(c), in.Provider)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": settings.Provider, "settings": settings})
}
