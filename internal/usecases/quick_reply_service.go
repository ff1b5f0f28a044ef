package usecases

import (
	"context"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type QuickReplyStore interface {
	List(ctx context.Context, userID int, search, category string) ([]entities.QuickReply, error)
	Create(ctx context.Context, q *entities.QuickReply) (*entities.QuickReply, error)
	Update(ctx context.Context, userID int, id int64, title, content, category, shortcut *string) (*entities.QuickReply, error)
	Delete(ctx context.Context, userID int, id int64) (bool, error)
	Reorder(ctx context.Context, userID int, ids []int64) error
}

type QuickReplyInput struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
	Shortcut *string `json:"shortcut"`
}

type QuickReplyService struct {
	store QuickReplyStore
}

func NewQuickReplyService(store QuickReplyStore) *QuickReplyService {
	return &QuickReplyService{store: store}
}

// List treats the category "all" as no filter.
func (s *QuickReplyService) List(ctx context.Context, userID int, search, category string) ([]entities.QuickReply, error) {
	if strings.EqualFold(category, "all") {
		category = ""
	}
	rows, err := s.store.List(ctx, userID, strings.TrimSpace(search), category)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []entities.QuickReply{}
	}
	return rows, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	return optional(strings.TrimSpace(*v))
}

func (s *QuickReplyService) Create(ctx context.Context, userID int, in QuickReplyInput) (*entities.QuickReply, error) {
	v := &ValidationError{}
	title, content := trimmedOrNil(in.Title), trimmedOrNil(in.Content)
	if title == nil {
		v.Add("title", "title is required")
	}
	if content == nil {
		v.Add("content", "content is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, &entities.QuickReply{
		UserID:   userID,
		Title:    *title,
		Content:  *content,
		Category: trimmedOrNil(in.Category),
		Shortcut: trimmedOrNil(in.Shortcut),
	})
}

func (s *QuickReplyService) Update(ctx context.Context, userID int, id int64, in QuickReplyInput) (*entities.QuickReply, error) {
	v := &ValidationError{}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		v.Add("title", "title cannot be empty")
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		v.Add("content", "content cannot be empty")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	q, err := s.store.Update(ctx, userID, id, trimmedOrNil(in.Title), trimmedOrNil(in.Content),
		trimmedOrNil(in.Category), trimmedOrNil(in.Shortcut))
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *QuickReplyService) Delete(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Reorder assigns sort_order by position in ids.
func (s *QuickReplyService) Reorder(ctx context.Context, userID int, ids []int64) ([]entities.QuickReply, error) {
	if len(ids) == 0 {
		v := &ValidationError{}
		v.Add("order", "order must be a non-empty list of ids")
		return nil, v
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			v := &ValidationError{}
			v.Add("order", "order must contain unique positive ids")
			return nil, v
		}
		seen[id] = true
	}
	if err := s.store.Reorder(ctx, userID, ids); err != nil {
		return nil, err
	}
	return s.List(ctx, userID, "", "")
}
