package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure/llm"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces/http"
	"github.com/loorksy/ERPwhatsapp/internal/repository"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

func main() {
	cfg := infrastructure.LoadConfig()
	logger := infrastructure.InitLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pgClient.Close()

	// Initialize Repositories
	userRepo := repository.NewUserRepository(pgClient.Pool)
	convRepo := repository.NewConversationRepository(pgClient.Pool)
	msgRepo := repository.NewMessageRepository(pgClient.Pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pgClient.Pool)
	aiSettingsRepo := repository.NewAISettingsRepository(pgClient.Pool)
	notificationRepo := repository.NewNotificationRepository(pgClient.Pool)
	sessionRepo := repository.NewSessionRepository(pgClient.Pool)
	quickReplyRepo := repository.NewQuickReplyRepository(pgClient.Pool)
	planRepo := repository.NewPlanRepository(pgClient.Pool)
	providerRepo := repository.NewAIProviderRepository(pgClient.Pool)
	usageRepo := repository.NewUsageRepository(pgClient.Pool)

	// Infrastructure
	translator, err := infrastructure.NewTranslator()
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}
	mailer := infrastructure.NewMailer(cfg)
	hub := infrastructure.NewHub()
	defer hub.Close()
	waManager := infrastructure.NewWhatsAppManager(cfg.WhatsAppSessionPath)

	publisher, err := infrastructure.NewRedisPublisher(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, cross-process events disabled", zap.Error(err))
	}
	if publisher != nil {
		defer publisher.Close()
	}

	alerter, err := infrastructure.NewTelegramAlerter(cfg.TelegramBotToken, cfg.TelegramAlertChatID)
	if err != nil {
		logger.Warn("telegram alerts disabled", zap.Error(err))
	}

	var embedder interfaces.Embedder
	if cfg.OpenAIAPIKey != "" {
		openai := llm.NewOpenAIClient(cfg.OpenAIAPIKey, "", &nethttp.Client{Timeout: 30 * time.Second})
		openai.EmbeddingModel = cfg.EmbeddingModel
		embedder = openai
	} else {
		logger.Info("OPENAI_API_KEY not set, knowledge search falls back to keywords")
	}

	hours := usecases.OperatingHours{Start: cfg.OperatingHoursStart, End: cfg.OperatingHoursEnd}

	// Initialize Usecases & Services
	authUsecase := usecases.NewAuthUsecase(userRepo, usecases.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		JWTExpiresIn:   cfg.JWTExpiresIn,
		ResetTokenTTL:  time.Duration(cfg.ResetTokenExpiresMinute) * time.Minute,
		FrontendURL:    cfg.FrontendURL,
		ExposeResetKey: !cfg.IsProduction(),
	}, mailer, translator)

	notificationService := usecases.NewNotificationService(notificationRepo, hub, userRepo, translator)
	if alerter != nil {
		notificationService.SetAlerter(alerter)
	}

	knowledgeService := usecases.NewKnowledgeService(knowledgeRepo, embedder, cfg.KnowledgeUploadDir, cfg.MaxUploadBytes())
	aiService := usecases.NewAIService(aiSettingsRepo, msgRepo, knowledgeService, usageRepo, cfg.ProviderAPIKey, cfg.DefaultAIProvider)

	intakeService := usecases.NewIntakeService(convRepo, msgRepo, usageRepo, notificationService, hub, hours)
	intakeService.SetAutoReply(aiService, waManager)
	intakeService.SetReplyGate(infrastructure.NewReplyGuard(infrastructure.DefaultReplyCooldown))
	quota := usecases.NewMessageQuota(userRepo, planRepo, usageRepo)
	intakeService.SetQuota(quota)

	sessionService, err := usecases.NewSessionService(waManager, sessionRepo, intakeService, notificationService, hub, cfg.IntakeWorkers)
	if err != nil {
		logger.Fatal("failed to start intake pool", zap.Error(err))
	}
	defer sessionService.Close()
	sessionService.SetOutboundLimiter(infrastructure.NewKeyedRateLimiter(cfg.SendRatePerMinute, time.Minute))
	if publisher != nil {
		intakeService.SetPublisher(publisher)
		sessionService.SetPublisher(publisher)
	}
	waManager.SetEventSink(sessionService)

	conversationService := usecases.NewConversationService(convRepo, msgRepo, intakeService, hub, userRepo, translator)
	quickReplyService := usecases.NewQuickReplyService(quickReplyRepo)
	adminService := usecases.NewAdminService(userRepo, msgRepo, usageRepo, planRepo, providerRepo, waManager)
	analyticsService := usecases.NewAnalyticsService(msgRepo, convRepo, userRepo, hours)

	// Ensure Admin User
	if err := authUsecase.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Warn("failed to ensure admin user", zap.Error(err))
	}

	if alerter != nil {
		alerter.SetStatusFunc(func() string {
			return fmt.Sprintf("WhatsApp sessions connected: %d", len(waManager.ConnectedUsers()))
		})
		go alerter.Run(ctx)
	}

	restored := sessionService.Restore(ctx)
	logger.Info("whatsapp sessions restored", zap.Int("count", restored))

	scheduler := infrastructure.NewScheduler()
	if err := sessionService.RegisterJobs(scheduler, userRepo, convRepo); err != nil {
		logger.Fatal("failed to register jobs", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup HTTP server
	http.RegisterValidators()
	apiLimiter := infrastructure.NewKeyedRateLimiter(cfg.APIRateMax, cfg.APIRateWindow)
	go apiLimiter.RunSweeper(ctx, 5*time.Minute)
	middleware := http.NewMiddleware(authUsecase, apiLimiter,
		infrastructure.NewAttemptLimiter(cfg.LoginRateMax, cfg.LoginRateWindow), cfg.CORSOrigins)

	var csrf *http.CSRF
	if cfg.CSRFEnabled {
		csrf = http.NewCSRF(cfg.SessionSecret, cfg.CSRFCookieName, cfg.CSRFHeaderName, cfg.CookieDomain,
			cfg.IsProduction(), "/api/health", "/api/webhook", "/ws")
	}

	maxBody := cfg.MaxUploadBytes() + 1<<20
	if maxBody < 10<<20 {
		maxBody = 10 << 20
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	http.SetupRoutes(r, http.Services{
		Auth:          authUsecase,
		Sessions:      sessionService,
		Conversations: conversationService,
		Notifications: notificationService,
		Knowledge:     knowledgeService,
		AI:            aiService,
		QuickReplies:  quickReplyService,
		Admin:         adminService,
		Analytics:     analyticsService,
		Quota:         quota,
		Hub:           hub,
	}, middleware, http.Options{AppEnv: cfg.AppEnv, MaxBodyBytes: maxBody, CSRF: csrf})

	srv := &nethttp.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv),
			zap.Strings("languages", infrastructure.SupportedLanguages()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	waManager.DisconnectAll()
}
