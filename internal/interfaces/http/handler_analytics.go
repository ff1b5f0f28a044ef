package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

func (h *Handler) registerAnalyticsRoutes(g *gin.RouterGroup) {
	if h.svc.Quota != nil {
		g.GET("/usage/quota", h.GetQuota)
	}
	if h.svc.Analytics == nil {
		return
	}
	g.GET("/analytics/summary", h.AnalyticsSummary)
	g.GET("/settings/advanced", h.GetAdvancedSettings)
	g.PUT("/settings/advanced", h.UpdateAdvancedSettings)
}

func (h *Handler) AnalyticsSummary(c *gin.Context) {
	days, _, ok := queryInt(c, "days")
	if !ok {
		return
	}
	report, err := h.svc.Analytics.Summary(c.Request.Context(), currentUserID(c), days)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetAdvancedSettings(c *gin.Context) {
	settings, err := h.svc.Analytics.Settings(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) UpdateAdvancedSettings(c *gin.Context) {
	var in usecases.AdvancedSettingsInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	settings, err := h.svc.Analytics.UpdateSettings(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetQuota reports this month's outbound usage against the plan limit.
func (h *Handler) GetQuota(c *gin.Context) {
	status, err := h.svc.Quota.Status(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"quota": status})
}
