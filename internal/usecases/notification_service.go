package usecases

import (
	"context"

	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

type NotificationStore interface {
	Create(ctx context.Context, in entities.NotificationInput) (*entities.Notification, error)
	List(ctx context.Context, userID, limit, offset int) ([]entities.Notification, error)
	MarkRead(ctx context.Context, userID int, id int64) (*entities.Notification, error)
	MarkAllRead(ctx context.Context, userID int) (int64, error)
	Delete(ctx context.Context, userID int, id int64) (int64, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int) (*entities.User, error)
}

var notificationTypes = map[string]bool{
	entities.NotificationInfo:    true,
	entities.NotificationSuccess: true,
	entities.NotificationWarning: true,
	entities.NotificationError:   true,
}

func sanitizeNotificationType(t string) string {
	if notificationTypes[t] {
		return t
	}
	return entities.NotificationInfo
}

type NotificationService struct {
	store   NotificationStore
	hub     interfaces.Broadcaster
	users   UserLookup
	tr      interfaces.Localizer
	alerter interfaces.Alerter
}

func NewNotificationService(store NotificationStore, hub interfaces.Broadcaster, users UserLookup, tr interfaces.Localizer) *NotificationService {
	return &NotificationService{store: store, hub: hub, users: users, tr: tr}
}

// SetAlerter mirrors error notifications to an operator channel.
func (s *NotificationService) SetAlerter(a interfaces.Alerter) {
	s.alerter = a
}

// Create stores and pushes a notification. Missing user or title is a no-op.
func (s *NotificationService) Create(ctx context.Context, in entities.NotificationInput) (*entities.Notification, error) {
	if in.UserID == 0 || in.Title == "" {
		return nil, nil
	}
	in.Type = sanitizeNotificationType(in.Type)

	n, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.hub.Emit(in.UserID, entities.EventNotificationNew, n)
	if n.Type == entities.NotificationError && s.alerter != nil {
		s.alerter.Notify(*n)
	}
	return n, nil
}

func (s *NotificationService) language(ctx context.Context, userID int) string {
	if s.users == nil {
		return ""
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		return ""
	}
	return u.Language
}

// Notify creates a notification whose copy comes from the <key>Title and
// <key>Body messages in the tenant's language. Failures are logged only.
func (s *NotificationService) Notify(ctx context.Context, userID int, typ, key string, data, metadata map[string]any) {
	lang := s.language(ctx, userID)
	in := entities.NotificationInput{
		UserID:   userID,
		Type:     typ,
		Title:    s.tr.T(lang, key+"Title", data),
		Message:  s.tr.T(lang, key+"Body", data),
		Metadata: metadata,
	}
	if _, err := s.Create(ctx, in); err != nil {
		zap.L().Error("notification: create failed", zap.Int("user_id", userID), zap.String("key", key), zap.Error(err))
	}
}

// List clamps limit to 1..200 (default 50).
func (s *NotificationService) List(ctx context.Context, userID, limit, offset int) ([]entities.Notification, error) {
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, userID, clamp(limit, 50, 1, 200), offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID int, id int64) (*entities.Notification, error) {
	n, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	s.hub.Emit(userID, entities.EventNotificationRead, map[string]any{"id": n.ID})
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.hub.Emit(userID, entities.EventNotificationReadAll, nil)
	}
	return count, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID int, id int64) error {
	count, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	s.hub.Emit(userID, entities.EventNotificationDeleted, map[string]any{"id": id})
	return nil
}
