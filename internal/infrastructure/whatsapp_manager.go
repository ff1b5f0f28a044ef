package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loorksy/ERPwhatsapp/internal/entities"

	"go.uber.org/zap"
)

var (
	ErrSessionNotReady = errors.New("whatsapp client not ready")
	ErrNoSession       = errors.New("whatsapp session not found")
)

// EventSink receives the lifecycle of every tenant session.
type EventSink interface {
	OnQR(userID int, code string)
	OnAuthenticated(userID int, phone string)
	OnReady(userID int, phone string)
	OnMessage(userID int, msg entities.InboundMessage)
	OnDisconnected(userID int, phone, reason string)
}

// WhatsAppManager is the registry of per-tenant WhatsApp sessions.
type WhatsAppManager struct {
	clients map[int]*WhatsAppClient
	mu      sync.RWMutex
	baseDir string
	sink    EventSink
}

func NewWhatsAppManager(baseDir string) *WhatsAppManager {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		zap.L().Warn("whatsapp: could not create session directory", zap.String("dir", baseDir), zap.Error(err))
	}
	return &WhatsAppManager{
		clients: make(map[int]*WhatsAppClient),
		baseDir: baseDir,
	}
}

// SetEventSink must be called before the first Connect.
func (m *WhatsAppManager) SetEventSink(sink EventSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

func (m *WhatsAppManager) GetClient(userID int) *WhatsAppClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[userID]
}

func (m *WhatsAppManager) devicePath(userID int) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("user_%d.db", userID))
}

// Connect starts the tenant's session, reusing a live one.
func (m *WhatsAppManager) Connect(ctx context.Context, userID int) (entities.SessionStatus, error) {
	m.mu.Lock()
	if existing, ok := m.clients[userID]; ok {
		if st := existing.Status(); st.Status != entities.SessionDisconnected {
			m.mu.Unlock()
			return st, nil
		}
		delete(m.clients, userID)
		go existing.close()
	}

	client, err := NewWhatsAppClient(ctx, m.devicePath(userID), userID, m.sink)
	if err != nil {
		m.mu.Unlock()
		return entities.SessionStatus{}, fmt.Errorf("failed to create WhatsApp client for user %d: %w", userID, err)
	}
	client.onDown = func(reason string) { m.handleDown(client, reason) }
	m.clients[userID] = client
	m.mu.Unlock()

	if err := client.Connect(); err != nil {
		m.remove(client)
		client.close()
		return entities.SessionStatus{}, fmt.Errorf("failed to connect WhatsApp for user %d: %w", userID, err)
	}
	return client.Status(), nil
}

// handleDown reports the disconnect and releases the client off the event goroutine.
func (m *WhatsAppManager) handleDown(client *WhatsAppClient, reason string) {
	phone := ""
	if st := client.Status(); st.PhoneNumber != nil {
		phone = *st.PhoneNumber
	}
	if m.sink != nil {
		m.sink.OnDisconnected(client.UserID, phone, reason)
	}
	go func() {
		m.remove(client)
		client.close()
	}()
}

func (m *WhatsAppManager) remove(client *WhatsAppClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.clients[client.UserID]; ok && current == client {
		delete(m.clients, client.UserID)
	}
}

// Status of an unknown tenant reads as disconnected.
func (m *WhatsAppManager) Status(userID int) entities.SessionStatus {
	client := m.GetClient(userID)
	if client == nil {
		return entities.SessionStatus{Status: entities.SessionDisconnected}
	}
	return client.Status()
}

func (m *WhatsAppManager) QR(userID int) (string, bool) {
	client := m.GetClient(userID)
	if client == nil {
		return "", false
	}
	qr := client.GetQR()
	return qr, qr != ""
}

// Disconnect closes the tenant's session with the given reason.
func (m *WhatsAppManager) Disconnect(userID int, reason string) error {
	client := m.GetClient(userID)
	if client == nil {
		return ErrNoSession
	}
	client.markDown(reason)
	return nil
}

// Logout unlinks the device, then drops the session.
func (m *WhatsAppManager) Logout(ctx context.Context, userID int) error {
	client := m.GetClient(userID)
	if client == nil {
		return nil
	}
	err := client.Logout(ctx)
	client.markDown(entities.ReasonLoggedOut)
	return err
}

func (m *WhatsAppManager) Send(ctx context.Context, userID int, phone, text string) (string, error) {
	client := m.GetClient(userID)
	if client == nil {
		return "", ErrSessionNotReady
	}
	return client.SendText(ctx, phone, text)
}

// ConnectedUsers lists tenants whose session is ready.
func (m *WhatsAppManager) ConnectedUsers() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []int
	for userID, client := range m.clients {
		if client.Status().IsReady {
			users = append(users, userID)
		}
	}
	return users
}

func (m *WhatsAppManager) Snapshot() map[int]entities.SessionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]entities.SessionStatus, len(m.clients))
	for userID, client := range m.clients {
		out[userID] = client.Status()
	}
	return out
}

// DisconnectAll closes every socket without reporting; used on shutdown.
func (m *WhatsAppManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.close()
	}
	m.clients = make(map[int]*WhatsAppClient)
}
