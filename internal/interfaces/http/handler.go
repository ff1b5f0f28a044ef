package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

// Services are the usecases behind the REST surface. Nil entries leave
// their routes unregistered.
type Services struct {
	Auth          *usecases.AuthUsecase
	Sessions      *usecases.SessionService
	Conversations *usecases.ConversationService
	Notifications *usecases.NotificationService
	Knowledge     *usecases.KnowledgeService
	AI            *usecases.AIService
	QuickReplies  *usecases.QuickReplyService
	Admin         *usecases.AdminService
	Analytics     *usecases.AnalyticsService
	Quota         *usecases.MessageQuota
	Hub           *infrastructure.Hub
}

type Options struct {
	AppEnv       string
	MaxBodyBytes int64
	CSRF         *CSRF
}

type Handler struct {
	svc        Services
	appEnv     string
	middleware *Middleware
}

func NewHandler(svc Services, appEnv string, middleware *Middleware) *Handler {
	return &Handler{svc: svc, appEnv: appEnv, middleware: middleware}
}

func SetupRoutes(r *gin.Engine, svc Services, middleware *Middleware, opts Options) *Handler {
	h := NewHandler(svc, opts.AppEnv, middleware)
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(SecurityHeaders(opts.AppEnv == "production"))
	r.Use(RequestSizeLimiter(opts.MaxBodyBytes))
	r.Use(middleware.CORSMiddleware())
	if opts.CSRF != nil {
		r.Use(opts.CSRF.Handlers()...)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	r.GET("/ws", h.ServeWS)

	api := r.Group("/api")
	api.GET("/health", h.Health)
	if opts.CSRF != nil {
		api.GET("/csrf-token", opts.CSRF.Issue)
	}

	public := api.Group("")
	public.Use(middleware.RateLimit())
	{
		h.registerAuthRoutes(public)
		public.POST("/webhook", h.Webhook)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.Use(middleware.RateLimit())
	{
		if svc.Auth != nil {
			protected.GET("/auth/me", h.Me)
		}
		h.registerWhatsAppRoutes(protected)
		h.registerConversationRoutes(protected)
		h.registerNotificationRoutes(protected)
		h.registerKnowledgeRoutes(protected)
		h.registerAIRoutes(protected)
		h.registerQuickReplyRoutes(protected)
		h.registerAnalyticsRoutes(protected)
	}

	if svc.Admin != nil {
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired())
		admin.Use(middleware.AdminRequired())
		admin.Use(middleware.RateLimit())
		h.registerAdminRoutes(admin)
	}
	return h
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": h.appEnv,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
