package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const quickReplyNotFound = "Quick reply not found"

func (h *Handler) registerQuickReplyRoutes(g *gin.RouterGroup) {
	if h.svc.QuickReplies == nil {
		return
	}
	qr := g.Group("/quick-replies")
	qr.GET("", h.ListQuickReplies)
	qr.POST("", h.CreateQuickReply)
	qr.POST("/reorder", h.ReorderQuickReplies)
	qr.PUT("/:id", h.UpdateQuickReply)
	qr.DELETE("/:id", h.DeleteQuickReply)
}

func (h *Handler) ListQuickReplies(c *gin.Context) {
	list, err := h.svc.QuickReplies.List(c.Request.Context(), currentUserID(c), SanitizeString(c.Query("search")), c.Query("category"))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"quickReplies": list})
}

func (h *Handler) CreateQuickReply(c *gin.Context) {
	var in usecases.QuickReplyInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	qr, err := h.svc.QuickReplies.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quickReply": qr})
}

func (h *Handler) UpdateQuickReply(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in usecases.QuickReplyInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	qr, err := h.svc.QuickReplies.Update(c.Request.Context(), currentUserID(c), id, in)
	if err != nil {
		fail(c, err, quickReplyNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quickReply": qr})
}

func (h *Handler) DeleteQuickReply(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.QuickReplies.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err, quickReplyNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderQuickReplies(c *gin.Context) {
	var in struct {
		Order []int64 `json:"order" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	list, err := h.svc.QuickReplies.Reorder(c.Request.Context(), currentUserID(c), in.Order)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"quickReplies": list})
}
