package usecases

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type fakeQuickReplies struct {
	items []*entities.QuickReply
	seq   int64
}

func (f *fakeQuickReplies) List(_ context.Context, userID int, search, category string) ([]entities.QuickReply, error) {
	var out []entities.QuickReply
	for _, q := range f.items {
		if q.UserID != userID {
			continue
		}
		if category != "" && (q.Category == nil || *q.Category != category) {
			continue
		}
		if search != "" && !strings.Contains(q.Title+q.Content, search) {
			continue
		}
		out = append(out, *q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeQuickReplies) Create(_ context.Context, q *entities.QuickReply) (*entities.QuickReply, error) {
	f.seq++
	q.ID = f.seq
	q.SortOrder = len(f.items)
	f.items = append(f.items, q)
	cp := *q
	return &cp, nil
}

func (f *fakeQuickReplies) Update(_ context.Context, userID int, id int64, title, content, category, shortcut *string) (*entities.QuickReply, error) {
	for _, q := range f.items {
		if q.ID != id || q.UserID != userID {
			continue
		}
		if title != nil {
			q.Title = *title
		}
		if content != nil {
			q.Content = *content
		}
		if category != nil {
			q.Category = category
		}
		if shortcut != nil {
			q.Shortcut = shortcut
		}
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeQuickReplies) Delete(_ context.Context, userID int, id int64) (bool, error) {
	for i, q := range f.items {
		if q.ID == id && q.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQuickReplies) Reorder(_ context.Context, userID int, ids []int64) error {
	for pos, id := range ids {
		for _, q := range f.items {
			if q.ID == id && q.UserID == userID {
				q.SortOrder = pos
			}
		}
	}
	return nil
}

func TestQuickReplyLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewQuickReplyService(&fakeQuickReplies{})

	_, err := svc.Create(ctx, 1, QuickReplyInput{Title: strPtr("  ")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)

	greet, err := svc.Create(ctx, 1, QuickReplyInput{Title: strPtr(" Greeting "), Content: strPtr("Welcome!"), Category: strPtr("general")})
	require.NoError(t, err)
	assert.Equal(t, "Greeting", greet.Title)
	bye, err := svc.Create(ctx, 1, QuickReplyInput{Title: strPtr("Bye"), Content: strPtr("See you"), Shortcut: strPtr("/bye")})
	require.NoError(t, err)

	all, err := svc.List(ctx, 1, "", "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	general, err := svc.List(ctx, 1, "", "general")
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, greet.ID, general[0].ID)

	none, err := svc.List(ctx, 2, "", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	updated, err := svc.Update(ctx, 1, bye.ID, QuickReplyInput{Content: strPtr("Goodbye")})
	require.NoError(t, err)
	assert.Equal(t, "Goodbye", updated.Content)
	assert.Equal(t, "Bye", updated.Title)

	_, err = svc.Update(ctx, 1, bye.ID, QuickReplyInput{Title: strPtr("")})
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Update(ctx, 2, bye.ID, QuickReplyInput{Content: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	ordered, err := svc.Reorder(ctx, 1, []int64{bye.ID, greet.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{bye.ID, greet.ID}, []int64{ordered[0].ID, ordered[1].ID})

	require.NoError(t, svc.Delete(ctx, 1, greet.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, greet.ID), ErrNotFound)
}

func TestQuickReplyReorderValidation(t *testing.T) {
	svc := NewQuickReplyService(&fakeQuickReplies{})
	for _, ids := range [][]int64{nil, {1, 1}, {0}, {-4, 2}} {
		_, err := svc.Reorder(context.Background(), 1, ids)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "ids %v", ids)
	}
}
