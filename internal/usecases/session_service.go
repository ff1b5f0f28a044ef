package usecases

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

// Bus topics carrying session lifecycle events.
const (
	TopicSessionQR            = "session:qr"
	TopicSessionAuthenticated = "session:authenticated"
	TopicSessionReady         = "session:ready"
	TopicSessionDisconnected  = "session:disconnected"
	TopicMessageReceived      = "message:received"
	TopicWebhookReceived      = "webhook:received"
)

const WebhookEventsChannel = "webhook:events"

const archiveClosedAfter = 30 * 24 * time.Hour

type SessionRegistry interface {
	Connect(ctx context.Context, userID int) (entities.SessionStatus, error)
	Status(userID int) entities.SessionStatus
	QR(userID int) (string, bool)
	Disconnect(userID int, reason string) error
	Logout(ctx context.Context, userID int) error
	Snapshot() map[int]entities.SessionStatus
}

type SessionStore interface {
	Save(ctx context.Context, userID int, phone string, data map[string]any, connected bool) error
	MarkDisconnected(ctx context.Context, userID int, phone string, data map[string]any) error
	ConnectedUsers(ctx context.Context) ([]int, error)
}

type InboundProcessor interface {
	ProcessInbound(ctx context.Context, userID int, msg entities.InboundMessage) (*IntakeResult, error)
	SendDirect(ctx context.Context, userID int, phone, text string) (*entities.Message, error)
}

type ResetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

type ConversationArchiver interface {
	ArchiveClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboundLimiter interface {
	Allow(key string) bool
}

// SessionService bridges WhatsApp session callbacks onto the event bus and
// owns the tenant-facing session operations.
type SessionService struct {
	registry      SessionRegistry
	store         SessionStore
	intake        InboundProcessor
	notifications *NotificationService
	hub           interfaces.Broadcaster
	publisher     interfaces.Publisher
	limiter       OutboundLimiter

	bus     EventBus.Bus
	pool    *ants.Pool
	qrImage func(code string) (string, error)
	timeout time.Duration
}

func NewSessionService(registry SessionRegistry, store SessionStore, intake InboundProcessor,
	notifications *NotificationService, hub interfaces.Broadcaster, workers int) (*SessionService, error) {
	if workers <= 0 {
		workers = 16
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		zap.S().Errorf("intake worker panic: %v", p)
	}))
	if err != nil {
		return nil, err
	}

	s := &SessionService{
		registry:      registry,
		store:         store,
		intake:        intake,
		notifications: notifications,
		hub:           hub,
		bus:           EventBus.New(),
		pool:          pool,
		qrImage:       infrastructure.QRDataURL,
		timeout:       30 * time.Second,
	}
	s.subscribe()
	return s, nil
}

func (s *SessionService) SetPublisher(p interfaces.Publisher) { s.publisher = p }

// SetOutboundLimiter throttles SendMessage per tenant.
func (s *SessionService) SetOutboundLimiter(l OutboundLimiter) { s.limiter = l }

// Bus exposes the event bus for extra subscribers.
func (s *SessionService) Bus() EventBus.Bus { return s.bus }

func (s *SessionService) subscribe() {
	subs := []struct {
		topic string
		fn    interface{}
	}{
		{TopicSessionQR, s.handleQR},
		{TopicSessionAuthenticated, s.handleAuthenticated},
		{TopicSessionReady, s.handleReady},
		{TopicSessionDisconnected, s.handleDisconnected},
		{TopicMessageReceived, s.handleMessage},
		{TopicWebhookReceived, s.handleWebhook},
	}
	for _, sub := range subs {
		if err := s.bus.Subscribe(sub.topic, sub.fn); err != nil {
			zap.L().Error("session: subscribe failed", zap.String("topic", sub.topic), zap.Error(err))
		}
	}
}

func (s *SessionService) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// EventSink implementation. Callbacks run on whatsmeow goroutines.

func (s *SessionService) OnQR(userID int, code string) {
	s.bus.Publish(TopicSessionQR, userID, code)
}

func (s *SessionService) OnAuthenticated(userID int, phone string) {
	s.bus.Publish(TopicSessionAuthenticated, userID, phone)
}

func (s *SessionService) OnReady(userID int, phone string) {
	s.bus.Publish(TopicSessionReady, userID, phone)
}

func (s *SessionService) OnMessage(userID int, msg entities.InboundMessage) {
	s.bus.Publish(TopicMessageReceived, userID, msg)
}

func (s *SessionService) OnDisconnected(userID int, phone, reason string) {
	s.bus.Publish(TopicSessionDisconnected, userID, phone, reason)
}

func (s *SessionService) handleQR(userID int, code string) {
	payload := entities.QRPayload{QR: code}
	image, err := s.qrImage(code)
	if err != nil {
		zap.L().Warn("session: qr render failed", zap.Int("user_id", userID), zap.Error(err))
	} else {
		payload.Image = image
	}
	s.hub.Emit(userID, entities.EventWhatsAppQR, payload)
	s.hub.Emit(userID, entities.EventWhatsAppStatus, s.registry.Status(userID))
}

func (s *SessionService) handleAuthenticated(userID int, phone string) {
	if phone == "" {
		phone = "unknown"
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.store.Save(ctx, userID, phone, map[string]any{"status": "authenticated"}, true); err != nil {
		zap.L().Error("session: persist authenticated failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *SessionService) handleReady(userID int, phone string) {
	ctx, cancel := s.ctx()
	defer cancel()
	data := map[string]any{"status": entities.SessionReady, "phone": phone}
	if err := s.store.Save(ctx, userID, phone, data, true); err != nil {
		zap.L().Error("session: persist ready failed", zap.Int("user_id", userID), zap.Error(err))
	}
	s.hub.Emit(userID, entities.EventWhatsAppStatus, s.registry.Status(userID))
}

func (s *SessionService) handleDisconnected(userID int, phone, reason string) {
	ctx, cancel := s.ctx()
	defer cancel()

	data := map[string]any{"status": entities.SessionDisconnected, "reason": reason}
	if err := s.store.MarkDisconnected(ctx, userID, phone, data); err != nil {
		zap.L().Error("session: persist disconnect failed", zap.Int("user_id", userID), zap.Error(err))
	}

	typ := entities.NotificationWarning
	if reason == entities.ReasonAuthFailure {
		typ = entities.NotificationError
	}
	s.notifications.Notify(ctx, userID, typ, "Disconnected",
		map[string]any{"Reason": reason},
		map[string]any{"reason": reason, "phone": phone})

	s.hub.Emit(userID, entities.EventWhatsAppStatus, map[string]any{
		"status":  entities.SessionDisconnected,
		"isReady": false,
		"reason":  reason,
	})
}

// handleMessage only enqueues: the bus lock is held while sync subscribers run.
func (s *SessionService) handleMessage(userID int, msg entities.InboundMessage) {
	err := s.pool.Submit(func() {
		ctx, cancel := s.ctx()
		defer cancel()
		if _, err := s.intake.ProcessInbound(ctx, userID, msg); err != nil {
			zap.L().Error("session: intake failed", zap.Int("user_id", userID), zap.String("message_id", msg.ExternalID), zap.Error(err))
		}
	})
	if err != nil {
		zap.L().Error("session: intake pool rejected message", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *SessionService) handleWebhook(payload map[string]any) {
	zap.L().Info("webhook: event received", zap.Int("fields", len(payload)))
	if s.publisher == nil {
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.publisher.Publish(ctx, WebhookEventsChannel, payload); err != nil {
		zap.L().Warn("webhook: publish failed", zap.Error(err))
	}
}

// Webhook records an externally posted event.
func (s *SessionService) Webhook(payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	s.bus.Publish(TopicWebhookReceived, payload)
}

func (s *SessionService) Connect(ctx context.Context, userID int) (entities.SessionStatus, error) {
	return s.registry.Connect(ctx, userID)
}

func (s *SessionService) Status(userID int) entities.SessionStatus {
	return s.registry.Status(userID)
}

// QR returns the pending pairing code with its PNG data URL.
func (s *SessionService) QR(userID int) (*entities.QRPayload, bool) {
	code, ok := s.registry.QR(userID)
	if !ok {
		return nil, false
	}
	payload := &entities.QRPayload{QR: code}
	if image, err := s.qrImage(code); err == nil {
		payload.Image = image
	}
	return payload, true
}

// Disconnect is a no-op for tenants without a live session.
func (s *SessionService) Disconnect(userID int, reason string) error {
	if reason == "" {
		reason = entities.ReasonManual
	}
	err := s.registry.Disconnect(userID, reason)
	if errors.Is(err, infrastructure.ErrNoSession) {
		return nil
	}
	return err
}

func (s *SessionService) Logout(ctx context.Context, userID int) error {
	return s.registry.Logout(ctx, userID)
}

// SendMessage is the manual send path behind /messages/send.
func (s *SessionService) SendMessage(ctx context.Context, userID int, phone, text string) (*entities.Message, error) {
	if s.limiter != nil && !s.limiter.Allow(strconv.Itoa(userID)) {
		return nil, ErrRateLimited
	}
	return s.intake.SendDirect(ctx, userID, phone, text)
}

// Restore reconnects every tenant whose last persisted session was connected.
func (s *SessionService) Restore(ctx context.Context) int {
	users, err := s.store.ConnectedUsers(ctx)
	if err != nil {
		zap.L().Error("session: restore lookup failed", zap.Error(err))
		return 0
	}
	restored := 0
	for _, userID := range users {
		if _, err := s.registry.Connect(ctx, userID); err != nil {
			zap.L().Warn("session: restore failed", zap.Int("user_id", userID), zap.Error(err))
			continue
		}
		restored++
	}
	zap.L().Info("session: restored sessions", zap.Int("count", restored), zap.Int("candidates", len(users)))
	return restored
}

// SyncStatus writes the in-memory state of ready sessions back to the store.
func (s *SessionService) SyncStatus(ctx context.Context) {
	for userID, st := range s.registry.Snapshot() {
		if !st.IsReady {
			continue
		}
		phone := "unknown"
		if st.PhoneNumber != nil && *st.PhoneNumber != "" {
			phone = *st.PhoneNumber
		}
		data := map[string]any{"status": st.Status, "syncedAt": time.Now().UTC().Format(time.RFC3339)}
		if err := s.store.Save(ctx, userID, phone, data, true); err != nil {
			zap.L().Warn("session: status sync failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}
}

// RegisterJobs adds the housekeeping jobs to the scheduler.
func (s *SessionService) RegisterJobs(sched *infrastructure.Scheduler, tokens ResetTokenPurger, archiver ConversationArchiver) error {
	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context)
	}{
		{"session_sync", "@every 1m", s.SyncStatus},
		{"purge_reset_tokens", "@hourly", func(ctx context.Context) {
			n, err := tokens.PurgeExpiredResetTokens(ctx)
			if err != nil {
				zap.L().Error("job: purge reset tokens failed", zap.Error(err))
				return
			}
			if n > 0 {
				zap.L().Info("job: purged reset tokens", zap.Int64("count", n))
			}
		}},
		{"archive_conversations", "@daily", func(ctx context.Context) {
			n, err := archiver.ArchiveClosedBefore(ctx, time.Now().Add(-archiveClosedAfter))
			if err != nil {
				zap.L().Error("job: archive conversations failed", zap.Error(err))
				return
			}
			zap.L().Info("job: archived conversations", zap.Int64("count", n))
		}},
	}
	for _, job := range jobs {
		fn := job.fn
		if err := sched.Add(job.name, job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			fn(ctx)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the intake pool.
func (s *SessionService) Close() {
	s.pool.Release()
}
