package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const (
	userNotFound     = "User not found"
	planNotFound     = "Plan not found"
	providerNotFound = "AI provider not found"
)

func (h *Handler) registerAdminRoutes(g *gin.RouterGroup) {
	g.GET("/stats", h.AdminStats)

	g.GET("/users", h.AdminListUsers)
	g.GET("/users/export", h.AdminExportUsers)
	g.GET("/users/:id", h.AdminGetUser)
	g.PATCH("/users/:id/status", h.AdminUpdateUserStatus)
	g.PATCH("/users/:id/plan", h.AdminUpdateUserPlan)
	g.DELETE("/users/:id", h.AdminDeleteUser)

	g.GET("/plans", h.AdminListPlans)
	g.PATCH("/plans/:id", h.AdminUpdatePlan)

	g.GET("/ai-providers", h.AdminListProviders)
	g.POST("/ai-providers", h.AdminCreateProvider)
	g.POST("/ai-providers/test", h.AdminTestProvider)
	g.PUT("/ai-providers/:id", h.AdminUpdateProvider)
	g.DELETE("/ai-providers/:id", h.AdminDeleteProvider)
}

// AdminStats returns platform-wide counters.
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.svc.Admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func userFilter(c *gin.Context) (entities.UserFilter, bool) {
	f := entities.UserFilter{
		Plan:   c.Query("plan"),
		Status: c.Query("status"),
		Search: SanitizeString(c.Query("search")),
	}
	var ok bool
	if f.Page, _, ok = queryInt(c, "page"); !ok {
		return f, false
	}
	if f.PageSize, _, ok = queryInt(c, "pageSize"); !ok {
		return f, false
	}
	return f, true
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	f, ok := userFilter(c)
	if !ok {
		return
	}
	page, err := h.svc.Admin.Users(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) AdminExportUsers(c *gin.Context) {
	f, ok := userFilter(c)
	if !ok {
		return
	}
	body, contentType, name, err := h.svc.Admin.Export(c.Request.Context(), f, c.Query("format"))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := h.svc.Admin.User(c.Request.Context(), int(id))
	if err != nil {
		fail(c, err, userNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) AdminUpdateUserStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		Status string `json:"status" binding:"required,oneof=active suspended"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	user, err := h.svc.Admin.SetStatus(c.Request.Context(), int(id), in.Status)
	if err != nil {
		fail(c, err, userNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) AdminUpdateUserPlan(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		Plan string `json:"plan" binding:"required"`
	}
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	user, err := h.svc.Admin.SetPlan(c.Request.Context(), int(id), in.Plan)
	if err != nil {
		fail(c, err, userNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) AdminDeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if int(id) == currentUserID(c) {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "id", Message: "admins cannot delete their own account"}})
		return
	}
	if err := h.svc.Admin.DeleteUser(c.Request.Context(), int(id)); err != nil {
		fail(c, err, userNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminListPlans(c *gin.Context) {
	plans, err := h.svc.Admin.Plans(c.Request.Context())
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *Handler) AdminUpdatePlan(c *gin.Context) {
	var patch entities.PlanPatch
	if !bindJSON(c, &patch, http.StatusBadRequest) {
		return
	}
	plan, err := h.svc.Admin.UpdatePlan(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err, planNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *Handler) AdminListProviders(c *gin.Context) {
	providers, err := h.svc.Admin.Providers(c.Request.Context())
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func (h *Handler) AdminCreateProvider(c *gin.Context) {
	var in usecases.ProviderInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	p, err := h.svc.Admin.CreateProvider(c.Request.Context(), in)
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"provider": p})
}

func (h *Handler) AdminUpdateProvider(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in usecases.ProviderInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	p, err := h.svc.Admin.UpdateProvider(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err, providerNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": p})
}

func (h *Handler) AdminDeleteProvider(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Admin.DeleteProvider(c.Request.Context(), id); err != nil {
		fail(c, err, providerNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminTestProvider(c *gin.Context) {
	var in usecases.ProviderTestInput
	if !bindJSON(c, &in, http.StatusBadRequest) {
		return
	}
	res, err := h.svc.Admin.TestProvider(c.Request.Context(), in)
	if err != nil {
		fail(c, err, providerNotFound)
		return
	}
	c.JSON(http.StatusOK, res)
}
