package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

func (h *Handler) registerWhatsAppRoutes(g *gin.RouterGroup) {
	if h.svc.Sessions == nil {
		return
	}
	wa := g.Group("/whatsapp")
	wa.POST("/connect", h.ConnectWhatsApp)
	wa.GET("/qr", h.GetQRCode)
	wa.POST("/disconnect", h.DisconnectWhatsApp)
	wa.GET("/status", h.GetWhatsAppStatus)
	wa.POST("/logout", h.LogoutWhatsApp)

	g.POST("/messages/send", h.SendMessage)
}

func (h *Handler) ConnectWhatsApp(c *gin.Context) {
	status, err := h.svc.Sessions.Connect(c.Request.Context(), currentUserID(c))
	if err != nil {
		zap.L().Error("whatsapp: connect failed", zap.Int("user_id", currentUserID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Unable to initialize WhatsApp client"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "WhatsApp client initializing", "status": status})
}

func (h *Handler) GetQRCode(c *gin.Context) {
	qr, ok := h.svc.Sessions.QR(currentUserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "No QR code available"})
		return
	}
	c.JSON(http.StatusOK, qr)
}

func (h *Handler) DisconnectWhatsApp(c *gin.Context) {
	if err := h.svc.Sessions.Disconnect(currentUserID(c), entities.ReasonManual); err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "WhatsApp client disconnected"})
}

func (h *Handler) GetWhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Sessions.Status(currentUserID(c)))
}

func (h *Handler) LogoutWhatsApp(c *gin.Context) {
	if err := h.svc.Sessions.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		// the device is dropped locally either way
		zap.L().Warn("whatsapp: logout failed", zap.Int("user_id", currentUserID(c)), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "WhatsApp session logged out"})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var in struct {
		Phone   string `json:"phone" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	text := TruncateString(SanitizeString(in.Message), MaxMessageLength)
	msg, err := h.svc.Sessions.SendMessage(c.Request.Context(), currentUserID(c), in.Phone, text)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message queued", "result": msg})
}

// Webhook accepts third-party delivery callbacks; the payload is only logged and republished.
func (h *Handler) Webhook(c *gin.Context) {
	payload := map[string]any{}
	if !bindOptionalJSON(c, &payload) {
		return
	}
	if h.svc.Sessions != nil {
		h.svc.Sessions.Webhook(payload)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
