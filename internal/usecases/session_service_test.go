package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
)

type fakeRegistry struct {
	mu        sync.Mutex
	statuses  map[int]entities.SessionStatus
	qr        map[int]string
	connected []int
	failFor   map[int]bool
	reasons   map[int]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		statuses: map[int]entities.SessionStatus{},
		qr:       map[int]string{},
		failFor:  map[int]bool{},
		reasons:  map[int]string{},
	}
}

func (r *fakeRegistry) Connect(_ context.Context, userID int) (entities.SessionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[userID] {
		return entities.SessionStatus{}, assert.AnError
	}
	r.connected = append(r.connected, userID)
	st := entities.SessionStatus{Status: entities.SessionInitializing}
	r.statuses[userID] = st
	return st, nil
}

func (r *fakeRegistry) Status(userID int) entities.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statuses[userID]
	if !ok {
		return entities.SessionStatus{Status: entities.SessionDisconnected}
	}
	return st
}

func (r *fakeRegistry) QR(userID int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.qr[userID]
	return code, ok
}

func (r *fakeRegistry) Disconnect(userID int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statuses[userID]; !ok {
		return infrastructure.ErrNoSession
	}
	r.reasons[userID] = reason
	return nil
}

func (r *fakeRegistry) Logout(context.Context, int) error { return nil }

func (r *fakeRegistry) Snapshot() map[int]entities.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]entities.SessionStatus, len(r.statuses))
	for k, v := range r.statuses {
		out[k] = v
	}
	return out
}

type savedSession struct {
	UserID    int
	Phone     string
	Data      map[string]any
	Connected bool
}

type fakeSessionStore struct {
	mu        sync.Mutex
	saved     []savedSession
	connected []int
}

func (f *fakeSessionStore) Save(_ context.Context, userID int, phone string, data map[string]any, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedSession{userID, phone, data, connected})
	return nil
}

func (f *fakeSessionStore) MarkDisconnected(_ context.Context, userID int, phone string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedSession{UserID: userID, Phone: phone, Data: data})
	return nil
}

func (f *fakeSessionStore) ConnectedUsers(context.Context) ([]int, error) {
	return f.connected, nil
}

func (f *fakeSessionStore) last() savedSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[len(f.saved)-1]
}

type fakeInbound struct {
	got  chan entities.InboundMessage
	sent []string
}

func (f *fakeInbound) ProcessInbound(_ context.Context, _ int, msg entities.InboundMessage) (*IntakeResult, error) {
	f.got <- msg
	return &IntakeResult{}, nil
}

func (f *fakeInbound) SendDirect(_ context.Context, _ int, phone, text string) (*entities.Message, error) {
	f.sent = append(f.sent, phone)
	return &entities.Message{MessageText: &text}, nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type sessionFixture struct {
	svc      *SessionService
	registry *fakeRegistry
	store    *fakeSessionStore
	intake   *fakeInbound
	notes    *fakeNotificationStore
	hub      *fakeHub
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		registry: newFakeRegistry(),
		store:    &fakeSessionStore{},
		intake:   &fakeInbound{got: make(chan entities.InboundMessage, 1)},
		notes:    &fakeNotificationStore{},
		hub:      &fakeHub{},
	}
	notifications := NewNotificationService(f.notes, f.hub, newFakeUsers(), fakeLocalizer{})
	svc, err := NewSessionService(f.registry, f.store, f.intake, notifications, f.hub, 2)
	require.NoError(t, err)
	svc.qrImage = func(code string) (string, error) { return "data:image/png;base64," + code, nil }
	t.Cleanup(svc.Close)
	f.svc = svc
	return f
}

func TestSessionQREvent(t *testing.T) {
	f := newSessionFixture(t)
	f.svc.OnQR(3, "2@abc")

	ev, ok := f.hub.last(entities.EventWhatsAppQR)
	require.True(t, ok)
	assert.Equal(t, 3, ev.UserID)
	assert.Equal(t, entities.QRPayload{QR: "2@abc", Image: "data:image/png;base64,2@abc"}, ev.Data)
}

func TestSessionReadyPersists(t *testing.T) {
	f := newSessionFixture(t)
	f.svc.OnReady(3, "966500000000")

	saved := f.store.last()
	assert.Equal(t, 3, saved.UserID)
	assert.Equal(t, "966500000000", saved.Phone)
	assert.True(t, saved.Connected)
	assert.Contains(t, f.hub.names(), entities.EventWhatsAppStatus)
}

func TestSessionAuthenticatedDefaultsPhone(t *testing.T) {
	f := newSessionFixture(t)
	f.svc.OnAuthenticated(3, "")
	assert.Equal(t, "unknown", f.store.last().Phone)
}

func TestSessionDisconnected(t *testing.T) {
	tests := []struct {
		reason   string
		phone    string
		wantType string
	}{
		{entities.ReasonAuthFailure, "966500000000", entities.NotificationError},
		{entities.ReasonConnection, "966500000000", entities.NotificationWarning},
		{entities.ReasonQRTimeout, "", entities.NotificationWarning},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			f := newSessionFixture(t)
			f.svc.OnDisconnected(3, tt.phone, tt.reason)

			saved := f.store.last()
			assert.Equal(t, 3, saved.UserID)
			assert.Equal(t, tt.phone, saved.Phone)
			assert.False(t, saved.Connected)
			assert.Equal(t, entities.SessionDisconnected, saved.Data["status"])
			assert.Equal(t, tt.reason, saved.Data["reason"])

			notes := f.notes.snapshot()
			require.Len(t, notes, 1)
			assert.Equal(t, tt.wantType, notes[0].Type)
			assert.Equal(t, "DisconnectedBody|Reason="+tt.reason, *notes[0].Message)

			ev, ok := f.hub.last(entities.EventWhatsAppStatus)
			require.True(t, ok)
			assert.Equal(t, entities.SessionDisconnected, ev.Data.(map[string]any)["status"])
		})
	}
}

func TestSessionMessageGoesThroughPool(t *testing.T) {
	f := newSessionFixture(t)
	f.svc.OnMessage(3, entities.InboundMessage{ExternalID: "X1", Body: "hi"})

	select {
	case msg := <-f.intake.got:
		assert.Equal(t, "X1", msg.ExternalID)
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached intake")
	}
}

func TestSessionRestore(t *testing.T) {
	f := newSessionFixture(t)
	f.store.connected = []int{1, 2, 3}
	f.registry.failFor[2] = true

	restored := f.svc.Restore(context.Background())
	assert.Equal(t, 2, restored)
	assert.Equal(t, []int{1, 3}, f.registry.connected)
}

func TestSessionQRAndDisconnect(t *testing.T) {
	f := newSessionFixture(t)

	_, ok := f.svc.QR(5)
	assert.False(t, ok)

	f.registry.qr[5] = "code"
	payload, ok := f.svc.QR(5)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,code", payload.Image)

	assert.NoError(t, f.svc.Disconnect(9, ""), "unknown tenant is a no-op")

	_, err := f.svc.Connect(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, f.svc.Disconnect(5, ""))
	assert.Equal(t, entities.ReasonManual, f.registry.reasons[5])
}

func TestSessionSyncStatusOnlyReady(t *testing.T) {
	f := newSessionFixture(t)
	phone := "966500000000"
	f.registry.statuses[1] = entities.SessionStatus{Status: entities.SessionReady, IsReady: true, PhoneNumber: &phone}
	f.registry.statuses[2] = entities.SessionStatus{Status: entities.SessionQR}

	f.svc.SyncStatus(context.Background())

	require.Len(t, f.store.saved, 1)
	assert.Equal(t, 1, f.store.saved[0].UserID)
	assert.Equal(t, phone, f.store.saved[0].Phone)
}

func TestSessionSendMessageRateLimited(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.SendMessage(context.Background(), 1, "123", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"123"}, f.intake.sent)

	f.svc.SetOutboundLimiter(denyAll{})
	_, err = f.svc.SendMessage(context.Background(), 1, "123", "hello")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSessionRegisterJobs(t *testing.T) {
	f := newSessionFixture(t)
	sched := infrastructure.NewScheduler()
	require.NoError(t, f.svc.RegisterJobs(sched, nil, nil))
	assert.Equal(t, 3, sched.Len())
}

func TestSessionWebhookPublishes(t *testing.T) {
	f := newSessionFixture(t)
	pub := &fakePublisher{}
	f.svc.SetPublisher(pub)

	f.svc.Webhook(map[string]any{"event": "ping"})
	require.Equal(t, 1, pub.count())
	assert.Equal(t, WebhookEventsChannel, pub.msgs[0].Channel)
}
