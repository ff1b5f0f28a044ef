package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const conversationNotFound = "Conversation not found"

func (h *Handler) registerConversationRoutes(g *gin.RouterGroup) {
	if h.svc.Conversations == nil {
		return
	}
	conv := g.Group("/conversations")
	conv.GET("", h.ListConversations)
	conv.GET("/:id", h.GetConversation)
	conv.PUT("/:id/status", h.UpdateConversationStatus)
	conv.POST("/:id/notes", h.AddConversationNote)
	conv.POST("/:id/transfer", h.TransferConversation)
	conv.POST("/:id/reply", h.ReplyConversation)
}

func (h *Handler) ListConversations(c *gin.Context) {
	f := entities.ConversationFilter{
		Status: c.Query("status"),
		Search: SanitizeString(c.Query("search")),
	}
	switch c.Query("sort") {
	case "", "latest":
	case "oldest":
		f.Oldest = true
	default:
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "sort", Message: "sort must be one of latest, oldest"}})
		return
	}

	priority, present, ok := queryInt(c, "priority")
	if !ok {
		return
	}
	if present {
		f.Priority = &priority
	}
	if f.Page, _, ok = queryInt(c, "page"); !ok {
		return
	}
	if f.PageSize, _, ok = queryInt(c, "pageSize"); !ok {
		return
	}

	page, err := h.svc.Conversations.List(c.Request.Context(), currentUserID(c), f)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetConversation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	page, _, ok := queryInt(c, "page")
	if !ok {
		return
	}
	pageSize, _, ok := queryInt(c, "pageSize")
	if !ok {
		return
	}
	detail, err := h.svc.Conversations.Get(c.Request.Context(), currentUserID(c), id, page, pageSize)
	if err != nil {
		fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateConversationStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var upd entities.ConversationUpdate
	if !bindOptionalJSON(c, &upd) {
		return
	}
	conv, err := h.svc.Conversations.Update(c.Request.Context(), currentUserID(c), id, upd)
	if err != nil {
		fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *Handler) AddConversationNote(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		Note string `json:"note" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	note, err := h.svc.Conversations.AddNote(c.Request.Context(), currentUserID(c), id, TruncateString(SanitizeString(in.Note), MaxNoteLength))
	if err != nil {
		fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func (h *Handler) TransferConversation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		OperatorName string `json:"operatorName"`
		Note         string `json:"note"`
	}
	if !bindOptionalJSON(c, &in) {
		return
	}
	conv, note, err := h.svc.Conversations.Transfer(c.Request.Context(), currentUserID(c), id,
		SanitizeString(in.OperatorName), TruncateString(SanitizeString(in.Note), MaxNoteLength))
	if err != nil {
		fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "transferNote": note})
}

func (h *Handler) ReplyConversation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		Message string `json:"message" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	msg, err := h.svc.Conversations.Reply(c.Request.Context(), currentUserID(c), id, TruncateString(SanitizeString(in.Message), MaxMessageLength))
	if err != nil {
		fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
