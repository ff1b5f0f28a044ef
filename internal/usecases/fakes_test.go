package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type emitted struct {
	UserID int
	Event  string
	Data   any
}

type fakeHub struct {
	mu     sync.Mutex
	events []emitted
}

func (h *fakeHub) Emit(userID int, event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, emitted{userID, event, data})
}

func (h *fakeHub) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Event)
	}
	return out
}

func (h *fakeHub) last(event string) (emitted, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Event == event {
			return h.events[i], true
		}
	}
	return emitted{}, false
}

// fakeLocalizer renders "<id>|k=v" so tests can assert on keys and data.
type fakeLocalizer struct{}

func (fakeLocalizer) T(_ string, id string, data map[string]any) string {
	var parts []string
	for _, k := range []string{"Contact", "Reason", "Operator", "Minutes", "Link"} {
		if v, ok := data[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if len(parts) == 0 {
		return id
	}
	return id + "|" + strings.Join(parts, ",")
}

type fakeNotificationStore struct {
	mu    sync.Mutex
	items []entities.Notification
	seq   int64
}

func (f *fakeNotificationStore) Create(_ context.Context, in entities.NotificationInput) (*entities.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n := entities.Notification{ID: f.seq, UserID: in.UserID, Type: in.Type, Title: in.Title}
	if in.Message != "" {
		msg := in.Message
		n.Message = &msg
	}
	f.items = append(f.items, n)
	return &n, nil
}

func (f *fakeNotificationStore) List(_ context.Context, userID, limit, offset int) ([]entities.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, userID int, id int64) (*entities.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].UserID == userID {
			f.items[i].IsRead = true
			n := f.items[i]
			return &n, nil
		}
	}
	return nil, nil
}

func (f *fakeNotificationStore) MarkAllRead(_ context.Context, userID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for i := range f.items {
		if f.items[i].UserID == userID && !f.items[i].IsRead {
			f.items[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationStore) Delete(_ context.Context, userID int, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id && n.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeNotificationStore) snapshot() []entities.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Notification(nil), f.items...)
}

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int]*entities.User
	nextID int
	resets map[int]resetEntry
}

func newFakeUsers(users ...*entities.User) *fakeUsers {
	f := &fakeUsers{byID: map[int]*entities.User{}, nextID: 1, resets: map[int]resetEntry{}}
	for _, u := range users {
		f.byID[u.ID] = u
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type fakeConversations struct {
	mu    sync.Mutex
	items []*entities.Conversation
	seq   int64
}

func (f *fakeConversations) FindLatestByPhone(_ context.Context, userID int, phone string) (*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.items) - 1; i >= 0; i-- {
		c := f.items[i]
		if c.UserID == userID && c.ContactPhone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeConversations) Create(_ context.Context, userID int, phone string, name *string) (*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := &entities.Conversation{ID: f.seq, UserID: userID, ContactPhone: phone, ContactName: name, Status: entities.ConversationOpen}
	f.items = append(f.items, c)
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) find(id int64) *entities.Conversation {
	for _, c := range f.items {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeConversations) SetContactName(_ context.Context, id int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.find(id); c != nil {
		c.ContactName = &name
	}
	return nil
}

func (f *fakeConversations) TouchLastMessage(_ context.Context, id int64, at time.Time) (*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return nil, nil
	}
	c.LastMessageAt = &at
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) Get(_ context.Context, userID int, id int64) (*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) List(_ context.Context, userID int, filter entities.ConversationFilter) ([]entities.Conversation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Conversation
	for _, c := range f.items {
		if c.UserID != userID || (filter.Status != "" && c.Status != filter.Status) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeConversations) Update(_ context.Context, userID int, id int64, upd entities.ConversationUpdate) (*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.Priority != nil {
		c.Priority = *upd.Priority
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) byID(id int64) entities.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.find(id)
}

type fakeMessages struct {
	mu    sync.Mutex
	items []entities.Message
	seq   int64
}

func (f *fakeMessages) Create(_ context.Context, m *entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	m.ID = f.seq
	f.items = append(f.items, *m)
	return nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID int64, limit, offset int) ([]entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Message
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].ConversationID == conversationID {
			out = append(out, f.items[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) all() []entities.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Message(nil), f.items...)
}

type fakeUsage struct {
	mu       sync.Mutex
	sent     int
	received int
}

func (f *fakeUsage) IncrementSent(context.Context, int) error {
	f.mu.Lock()
	f.sent++
	f.mu.Unlock()
	return nil
}

func (f *fakeUsage) IncrementReceived(context.Context, int) error {
	f.mu.Lock()
	f.received++
	f.mu.Unlock()
	return nil
}

func (f *fakeUsage) MonthSent(context.Context, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, nil
}

type sentText struct {
	UserID int
	Phone  string
	Text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, userID int, phone, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentText{userID, phone, text})
	return fmt.Sprintf("wamid-%d", len(f.sent)), nil
}

type fakeResponder struct {
	reply string
	ok    bool
	err   error
	calls int
}

func (f *fakeResponder) DraftReply(context.Context, int, int64, string) (string, bool, error) {
	f.calls++
	return f.reply, f.ok, f.err
}

type published struct {
	Channel string
	Payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{channel, payload})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeAlerter struct {
	got []entities.Notification
}

func (f *fakeAlerter) Notify(n entities.Notification) { f.got = append(f.got, n) }

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

type resetEntry struct {
	hash    string
	expires time.Time
}

func (f *fakeUsers) Create(_ context.Context, user *entities.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.nextID
	f.nextID++
	if user.Status == "" {
		user.Status = entities.UserStatusActive
	}
	if user.Plan == "" {
		user.Plan = "free"
	}
	if user.Language == "" {
		user.Language = "ar"
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) TouchLastActive(context.Context, int) error { return nil }

func (f *fakeUsers) SetRole(_ context.Context, id int, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.Role = role
	}
	return nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, id int, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[id] = resetEntry{tokenHash, expiresAt}
	return nil
}

func (f *fakeUsers) GetByResetToken(_ context.Context, tokenHash string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.resets {
		if r.hash == tokenHash && r.expires.After(time.Now()) {
			cp := *f.byID[id]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].PasswordHash = passwordHash
	delete(f.resets, id)
	return nil
}
