package usecases

import (
	"context"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

type ConversationPage struct {
	Data     []entities.Conversation `json:"data"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
	Total    int                     `json:"total"`
}

type ConversationDetail struct {
	Conversation *entities.Conversation `json:"conversation"`
	Messages     []entities.Message     `json:"messages"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"pageSize"`
}

type ConversationService struct {
	conversations ConversationStore
	messages      MessageStore
	intake        *IntakeService
	hub           interfaces.Broadcaster
	users         UserLookup
	tr            interfaces.Localizer
}

func NewConversationService(conversations ConversationStore, messages MessageStore, intake *IntakeService,
	hub interfaces.Broadcaster, users UserLookup, tr interfaces.Localizer) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		intake:        intake,
		hub:           hub,
		users:         users,
		tr:            tr,
	}
}

func validStatus(status string) bool {
	for _, s := range entities.ConversationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *ConversationService) List(ctx context.Context, userID int, f entities.ConversationFilter) (*ConversationPage, error) {
	v := &ValidationError{}
	if f.Status != "" && !validStatus(f.Status) {
		v.Add("status", "invalid status")
	}
	if f.Priority != nil && (*f.Priority < 0 || *f.Priority > 5) {
		v.Add("priority", "priority must be between 0 and 5")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize = clamp(f.PageSize, 20, 1, 100)

	rows, total, err := s.conversations.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entities.Conversation{}
	}
	return &ConversationPage{Data: rows, Page: f.Page, PageSize: f.PageSize, Total: total}, nil
}

func (s *ConversationService) owned(ctx context.Context, userID int, id int64) (*entities.Conversation, error) {
	conv, err := s.conversations.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	return conv, nil
}

// Get returns the conversation with a page of messages, newest first.
func (s *ConversationService) Get(ctx context.Context, userID int, id int64, page, pageSize int) (*ConversationDetail, error) {
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	pageSize = clamp(pageSize, 50, 1, 200)

	msgs, err := s.messages.ListByConversation(ctx, id, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []entities.Message{}
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs, Page: page, PageSize: pageSize}, nil
}

func (s *ConversationService) Update(ctx context.Context, userID int, id int64, upd entities.ConversationUpdate) (*entities.Conversation, error) {
	v := &ValidationError{}
	if upd.Status != nil && !validStatus(*upd.Status) {
		v.Add("status", "invalid status")
	}
	if upd.Priority != nil && (*upd.Priority < 0 || *upd.Priority > 5) {
		v.Add("priority", "priority must be between 0 and 5")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	conv, err := s.conversations.Update(ctx, userID, id, upd)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	s.hub.Emit(userID, entities.EventConversationUpdated, conv)
	return conv, nil
}

func (s *ConversationService) systemMessage(ctx context.Context, userID int, conv *entities.Conversation, text string) (*entities.Message, error) {
	msg := &entities.Message{
		ConversationID: conv.ID,
		SenderType:     entities.SenderSystem,
		MessageText:    &text,
		Timestamp:      s.intake.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.hub.Emit(userID, entities.EventMessageNew, map[string]any{"conversationId": conv.ID, "message": msg})
	return msg, nil
}

// AddNote stores an internal note as a system message.
func (s *ConversationService) AddNote(ctx context.Context, userID int, id int64, note string) (*entities.Message, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		v := &ValidationError{}
		v.Add("note", "note is required")
		return nil, v
	}
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.systemMessage(ctx, userID, conv, note)
}

// Transfer parks the conversation as pending for a human operator.
func (s *ConversationService) Transfer(ctx context.Context, userID int, id int64, operatorName, note string) (*entities.Conversation, *entities.Message, error) {
	pending := entities.ConversationPending
	conv, err := s.conversations.Update(ctx, userID, id, entities.ConversationUpdate{Status: &pending})
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrNotFound
	}
	s.hub.Emit(userID, entities.EventConversationUpdated, conv)

	text := strings.TrimSpace(note)
	if text == "" {
		operator := strings.TrimSpace(operatorName)
		if operator == "" {
			operator = "operator"
		}
		lang := ""
		if u, err := s.users.GetByID(ctx, userID); err == nil && u != nil {
			lang = u.Language
		}
		text = s.tr.T(lang, "TransferNote", map[string]any{"Operator": operator})
	}
	msg, err := s.systemMessage(ctx, userID, conv, text)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// Reply sends an operator message to the contact over WhatsApp.
func (s *ConversationService) Reply(ctx context.Context, userID int, id int64, text string) (*entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		v := &ValidationError{}
		v.Add("message", "message is required")
		return nil, v
	}
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.intake.RecordOutbound(ctx, userID, conv, text, entities.SenderUser)
}
