package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const knowledgeNotFound = "Knowledge entry not found"

func (h *Handler) registerKnowledgeRoutes(g *gin.RouterGroup) {
	if h.svc.Knowledge == nil {
		return
	}
	kb := g.Group("/knowledge")
	kb.GET("", h.ListKnowledge)
	kb.POST("", h.CreateKnowledge)
	kb.GET("/search", h.SearchKnowledge)
	kb.POST("/search", h.SearchKnowledge)
	kb.POST("/context", h.KnowledgeContext)
	kb.POST("/upload", h.UploadKnowledge)
	kb.GET("/:id", h.GetKnowledge)
	kb.PUT("/:id", h.UpdateKnowledge)
	kb.DELETE("/:id", h.DeleteKnowledge)
}

func (h *Handler) ListKnowledge(c *gin.Context) {
	page, _, ok := queryInt(c, "page")
	if !ok {
		return
	}
	pageSize, _, ok := queryInt(c, "pageSize")
	if !ok {
		return
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	rows, err := h.svc.Knowledge.List(c.Request.Context(), currentUserID(c), entities.KnowledgeQuery{
		Query:    SanitizeString(c.Query("search")),
		Category: c.Query("category"),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page": page, "pageSize": pageSize})
}

func (h *Handler) CreateKnowledge(c *gin.Context) {
	var in entities.KnowledgeInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	entry, err := h.svc.Knowledge.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"knowledge": entry})
}

func (h *Handler) GetKnowledge(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	entry, err := h.svc.Knowledge.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		fail(c, err, knowledgeNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"knowledge": entry})
}

func (h *Handler) UpdateKnowledge(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in entities.KnowledgeInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	entry, err := h.svc.Knowledge.Update(c.Request.Context(), currentUserID(c), id, in)
	if err != nil {
		fail(c, err, knowledgeNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"knowledge": entry})
}

func (h *Handler) DeleteKnowledge(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Knowledge.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err, knowledgeNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
	Semantic *bool  `json:"semantic"`
}

// SearchKnowledge serves both GET ?q= and POST {query}.
func (h *Handler) SearchKnowledge(c *gin.Context) {
	var in searchRequest
	if c.Request.Method == http.MethodGet {
		in.Query = c.Query("q")
		in.Category = c.Query("category")
		limit, _, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		in.Limit = limit
		if raw := c.Query("semantic"); raw != "" {
			semantic := cast.ToBool(raw)
			in.Semantic = &semantic
		}
	} else if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}

	in.Query = SanitizeString(in.Query)
	if in.Query == "" {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "query", Message: "query is required"}})
		return
	}
	if in.Limit < 0 || in.Limit > 50 {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "limit", Message: "limit must be between 1 and 50"}})
		return
	}
	if in.Limit == 0 {
		in.Limit = 10
	}

	results, err := h.svc.Knowledge.Search(c.Request.Context(), currentUserID(c), entities.KnowledgeQuery{
		Query:    in.Query,
		Category: strings.TrimSpace(in.Category),
		Limit:    in.Limit,
		Semantic: in.Semantic == nil || *in.Semantic,
	})
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) KnowledgeContext(c *gin.Context) {
	var in struct {
		Question string `json:"question" binding:"required"`
		TopK     int    `json:"topK" binding:"omitempty,min=1,max=20"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	snippets, err := h.svc.Knowledge.FindRelevantContext(c.Request.Context(), currentUserID(c), SanitizeString(in.Question), in.TopK)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": snippets})
}

func (h *Handler) UploadKnowledge(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "file", Message: "file is required"}})
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, err, "")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, err, "")
		return
	}

	res, err := h.svc.Knowledge.Upload(c.Request.Context(), currentUserID(c), usecases.UploadInput{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		Category: strings.TrimSpace(c.PostForm("category")),
	})
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, res)
}
