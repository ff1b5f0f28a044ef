package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const notificationNotFound = "Notification not found"

func (h *Handler) registerNotificationRoutes(g *gin.RouterGroup) {
	if h.svc.Notifications == nil {
		return
	}
	n := g.Group("/notifications")
	n.GET("", h.ListNotifications)
	n.POST("", h.CreateNotification)
	n.PUT("/read-all", h.MarkAllNotificationsRead)
	n.PUT("/:id/read", h.MarkNotificationRead)
	n.DELETE("/:id", h.DeleteNotification)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, _, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	if offset < 0 {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "offset", Message: "offset must not be negative"}})
		return
	}
	list, err := h.svc.Notifications.List(c.Request.Context(), currentUserID(c), limit, offset)
	if err != nil {
		fail(c, err, "")
		return
	}
	if list == nil {
		list = []entities.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateNotification(c *gin.Context) {
	var in struct {
		Title    string         `json:"title" binding:"required"`
		Message  string         `json:"message"`
		Type     string         `json:"type" binding:"omitempty,oneof=info success warning error"`
		Metadata map[string]any `json:"metadata"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	n, err := h.svc.Notifications.Create(c.Request.Context(), entities.NotificationInput{
		UserID:   currentUserID(c),
		Type:     in.Type,
		Title:    SanitizeString(in.Title),
		Message:  SanitizeString(in.Message),
		Metadata: in.Metadata,
	})
	if err != nil {
		fail(c, err, "")
		return
	}
	if n == nil {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "title", Message: "title is required"}})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	n, err := h.svc.Notifications.MarkRead(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		fail(c, err, notificationNotFound)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	count, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Notifications.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err, notificationNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
