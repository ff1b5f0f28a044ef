package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

func TestSessionTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"", entities.SessionInitializing, true},
		{"", entities.SessionReady, false},
		{"", entities.SessionDisconnected, false},
		{entities.SessionInitializing, entities.SessionQR, true},
		{entities.SessionInitializing, entities.SessionReady, true},
		{entities.SessionInitializing, entities.SessionDisconnected, true},
		{entities.SessionInitializing, entities.SessionInitializing, false},
		{entities.SessionQR, entities.SessionQR, true},
		{entities.SessionQR, entities.SessionReady, true},
		{entities.SessionQR, entities.SessionInitializing, false},
		{entities.SessionReady, entities.SessionReady, true},
		{entities.SessionReady, entities.SessionQR, false},
		{entities.SessionReady, entities.SessionDisconnected, true},
		{entities.SessionDisconnected, entities.SessionInitializing, true},
		{entities.SessionDisconnected, entities.SessionReady, false},
		{entities.SessionDisconnected, entities.SessionDisconnected, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}

func TestSessionStateLifecycle(t *testing.T) {
	s := newSessionState()
	assert.Equal(t, entities.SessionStatus{Status: entities.SessionDisconnected}, s.snapshot())

	assert.False(t, s.setQR("too-early"))
	assert.True(t, s.set(entities.SessionInitializing))
	assert.True(t, s.setQR("code-1"))
	assert.True(t, s.setQR("code-2"))
	assert.Equal(t, "code-2", s.qr)

	assert.True(t, s.setReady("966500000000"))
	assert.Empty(t, s.qr)
	snap := s.snapshot()
	assert.True(t, snap.IsReady)
	if assert.NotNil(t, snap.PhoneNumber) {
		assert.Equal(t, "966500000000", *snap.PhoneNumber)
	}

	assert.True(t, s.setReady(""), "reconnect keeps the known phone")
	assert.Equal(t, "966500000000", s.phone)
}

func TestSessionDisconnectFiresOnce(t *testing.T) {
	s := newSessionState()
	assert.False(t, s.setDisconnected(), "never started")

	s.set(entities.SessionInitializing)
	s.setQR("code")
	assert.True(t, s.setDisconnected())
	assert.Empty(t, s.qr)
	assert.False(t, s.setDisconnected())
	assert.False(t, s.setDisconnected())

	assert.Equal(t, entities.SessionDisconnected, s.snapshot().Status)
	assert.False(t, s.snapshot().IsReady)
	assert.True(t, s.set(entities.SessionInitializing), "connect again after a disconnect")
}
