package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

type ConversationStore interface {
	FindLatestByPhone(ctx context.Context, userID int, phone string) (*entities.Conversation, error)
	Create(ctx context.Context, userID int, phone string, name *string) (*entities.Conversation, error)
	SetContactName(ctx context.Context, id int64, name string) error
	TouchLastMessage(ctx context.Context, id int64, at time.Time) (*entities.Conversation, error)
	Get(ctx context.Context, userID int, id int64) (*entities.Conversation, error)
	List(ctx context.Context, userID int, f entities.ConversationFilter) ([]entities.Conversation, int, error)
	Update(ctx context.Context, userID int, id int64, upd entities.ConversationUpdate) (*entities.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *entities.Message) error
	ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]entities.Message, error)
}

type UsageCounter interface {
	IncrementSent(ctx context.Context, userID int) error
	IncrementReceived(ctx context.Context, userID int) error
}

// Responder drafts an automatic reply; ok is false when the tenant has no AI configured.
type Responder interface {
	DraftReply(ctx context.Context, userID int, conversationID int64, text string) (reply string, ok bool, err error)
}

// QuotaChecker rejects outbound sends once the tenant's plan limit is used up.
type QuotaChecker interface {
	Check(ctx context.Context, userID int) error
}

// ReplyGate keeps one auto reply in flight per conversation.
type ReplyGate interface {
	Begin(key string) bool
	Done(key string)
}

type IntakeResult struct {
	Conversation  *entities.Conversation `json:"conversation"`
	Message       *entities.Message      `json:"message"`
	ShouldRespond bool                   `json:"shouldRespond"`
	Intent        entities.Intent        `json:"intent"`
}

// IntakeService turns inbound WhatsApp traffic into conversations and messages.
type IntakeService struct {
	conversations ConversationStore
	messages      MessageStore
	usage         UsageCounter
	notifications *NotificationService
	hub           interfaces.Broadcaster
	publisher     interfaces.Publisher
	messenger     interfaces.Messenger
	responder     Responder
	gate          ReplyGate
	quota         QuotaChecker
	hours         OperatingHours
	now           func() time.Time
}

func NewIntakeService(conversations ConversationStore, messages MessageStore, usage UsageCounter,
	notifications *NotificationService, hub interfaces.Broadcaster, hours OperatingHours) *IntakeService {
	return &IntakeService{
		conversations: conversations,
		messages:      messages,
		usage:         usage,
		notifications: notifications,
		hub:           hub,
		hours:         hours,
		now:           time.Now,
	}
}

// SetPublisher enables the cross-process feed of intake events.
func (s *IntakeService) SetPublisher(p interfaces.Publisher) { s.publisher = p }

// SetAutoReply enables AI drafted replies sent through messenger.
func (s *IntakeService) SetAutoReply(r Responder, m interfaces.Messenger) {
	s.responder = r
	s.messenger = m
}

func (s *IntakeService) SetReplyGate(g ReplyGate) { s.gate = g }

func (s *IntakeService) SetQuota(q QuotaChecker) { s.quota = q }

func (s *IntakeService) Hours() OperatingHours { return s.hours }

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// findOrCreateConversation reuses the newest thread with the contact and
// backfills its name. created reports a new row.
func (s *IntakeService) findOrCreateConversation(ctx context.Context, userID int, phone, name string) (*entities.Conversation, bool, error) {
	conv, err := s.conversations.FindLatestByPhone(ctx, userID, phone)
	if err != nil {
		return nil, false, err
	}
	if conv != nil {
		if name != "" && (conv.ContactName == nil || *conv.ContactName == "") {
			if err := s.conversations.SetContactName(ctx, conv.ID, name); err != nil {
				return nil, false, err
			}
			conv.ContactName = &name
		}
		return conv, false, nil
	}

	conv, err = s.conversations.Create(ctx, userID, phone, optional(name))
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// ProcessInbound runs the intake pipeline for one message. Messages without a
// usable contact phone are dropped and return nil.
func (s *IntakeService) ProcessInbound(ctx context.Context, userID int, in entities.InboundMessage) (*IntakeResult, error) {
	peer := in.From
	if in.FromMe {
		peer = in.To
	}
	contactPhone := NormalizePhone(peer)
	if contactPhone == "" {
		zap.L().Warn("intake: unable to normalize phone", zap.Int("user_id", userID), zap.String("message_id", in.ExternalID))
		return nil, nil
	}

	contactName := ""
	if !in.FromMe {
		contactName = in.PushName
	}

	conv, created, err := s.findOrCreateConversation(ctx, userID, contactPhone, contactName)
	if err != nil {
		return nil, err
	}
	if created {
		s.hub.Emit(userID, entities.EventConversationNew, conv)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	intent := DetectIntent(in.Body)

	msg := &entities.Message{
		ConversationID: conv.ID,
		SenderType:     entities.SenderContact,
		MessageText:    optional(in.Body),
		MediaURL:       optional(in.MediaURL),
		MediaType:      optional(in.MediaType),
		ExternalID:     optional(in.ExternalID),
		Timestamp:      ts,
	}
	if in.FromMe {
		msg.SenderType = entities.SenderUser
	} else {
		msg.Intent = &intent.Intent
		msg.IntentConfidence = &intent.Confidence
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if touched, err := s.conversations.TouchLastMessage(ctx, conv.ID, ts); err != nil {
		zap.L().Warn("intake: touch conversation failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
	} else if touched != nil {
		conv = touched
	}

	s.hub.Emit(userID, entities.EventMessageNew, map[string]any{"conversationId": conv.ID, "message": msg})
	s.hub.Emit(userID, entities.EventConversationUpdated, conv)

	shouldRespond := ShouldBotRespond(conv, msg, s.hours, s.now())

	who := contactPhone
	if conv.ContactName != nil && *conv.ContactName != "" {
		who = *conv.ContactName
	}
	if !in.FromMe {
		s.notifications.Notify(ctx, userID, entities.NotificationInfo, "NewMessage",
			map[string]any{"Contact": who},
			map[string]any{"conversationId": conv.ID, "messageId": msg.ID})
	}
	if intent.Intent == entities.IntentHandoff {
		s.notifications.Notify(ctx, userID, entities.NotificationWarning, "Handoff",
			map[string]any{"Contact": who},
			map[string]any{"conversationId": conv.ID, "intent": intent})
	}

	s.count(ctx, userID, in.FromMe)
	s.publish(ctx, userID, conv, msg, intent)

	result := &IntakeResult{Conversation: conv, Message: msg, ShouldRespond: shouldRespond, Intent: intent}
	if shouldRespond && !in.FromMe && intent.Intent != entities.IntentHandoff {
		s.autoReply(ctx, userID, conv, in.Body)
	}
	return result, nil
}

func (s *IntakeService) count(ctx context.Context, userID int, outbound bool) {
	if s.usage == nil {
		return
	}
	var err error
	if outbound {
		err = s.usage.IncrementSent(ctx, userID)
	} else {
		err = s.usage.IncrementReceived(ctx, userID)
	}
	if err != nil {
		zap.L().Warn("intake: usage counter failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *IntakeService) publish(ctx context.Context, userID int, conv *entities.Conversation, msg *entities.Message, intent entities.Intent) {
	if s.publisher == nil {
		return
	}
	payload := map[string]any{
		"userId":         userID,
		"conversationId": conv.ID,
		"contactPhone":   conv.ContactPhone,
		"message":        msg,
		"intent":         intent,
	}
	if err := s.publisher.Publish(ctx, infrastructure.IncomingMessagesChannel, payload); err != nil {
		zap.L().Warn("intake: publish failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *IntakeService) autoReply(ctx context.Context, userID int, conv *entities.Conversation, text string) {
	if s.responder == nil || s.messenger == nil || text == "" {
		return
	}
	if s.gate != nil {
		key := fmt.Sprintf("%d:%d", userID, conv.ID)
		if !s.gate.Begin(key) {
			zap.L().Debug("intake: auto reply skipped, conversation busy", zap.Int("user_id", userID), zap.Int64("conversation_id", conv.ID))
			return
		}
		defer s.gate.Done(key)
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			zap.L().Info("intake: auto reply skipped, message quota reached", zap.Int("user_id", userID))
		} else {
			zap.L().Warn("intake: quota check failed", zap.Int("user_id", userID), zap.Error(err))
		}
		return
	}
	reply, ok, err := s.responder.DraftReply(ctx, userID, conv.ID, text)
	if err != nil {
		zap.L().Warn("intake: auto reply failed", zap.Int("user_id", userID), zap.Error(err))
		return
	}
	if !ok || reply == "" {
		return
	}
	if _, err := s.deliver(ctx, userID, conv, reply, entities.SenderBot); err != nil {
		zap.L().Warn("intake: auto reply not delivered", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *IntakeService) checkQuota(ctx context.Context, userID int) error {
	if s.quota == nil {
		return nil
	}
	return s.quota.Check(ctx, userID)
}

// RecordOutbound sends text to the conversation's contact and stores it.
func (s *IntakeService) RecordOutbound(ctx context.Context, userID int, conv *entities.Conversation, text, sender string) (*entities.Message, error) {
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	return s.deliver(ctx, userID, conv, text, sender)
}

func (s *IntakeService) deliver(ctx context.Context, userID int, conv *entities.Conversation, text, sender string) (*entities.Message, error) {
	if s.messenger == nil {
		return nil, ErrSessionNotReady
	}
	externalID, err := s.messenger.Send(ctx, userID, conv.ContactPhone, text)
	if err != nil {
		return nil, err
	}

	msg := &entities.Message{
		ConversationID: conv.ID,
		SenderType:     sender,
		MessageText:    &text,
		ExternalID:     optional(externalID),
		Timestamp:      s.now(),
		IsFromBot:      sender == entities.SenderBot,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if touched, err := s.conversations.TouchLastMessage(ctx, conv.ID, msg.Timestamp); err == nil && touched != nil {
		*conv = *touched
	}
	s.count(ctx, userID, true)
	s.hub.Emit(userID, entities.EventMessageNew, map[string]any{"conversationId": conv.ID, "message": msg})
	s.hub.Emit(userID, entities.EventConversationUpdated, conv)
	return msg, nil
}

// SendDirect delivers text to a phone, opening a conversation when none exists.
func (s *IntakeService) SendDirect(ctx context.Context, userID int, phone, text string) (*entities.Message, error) {
	contactPhone := NormalizePhone(phone)
	if contactPhone == "" {
		v := &ValidationError{}
		v.Add("phone", "phone must contain digits")
		return nil, v
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	conv, created, err := s.findOrCreateConversation(ctx, userID, contactPhone, "")
	if err != nil {
		return nil, err
	}
	if created {
		s.hub.Emit(userID, entities.EventConversationNew, conv)
	}
	return s.deliver(ctx, userID, conv, text, entities.SenderUser)
}
