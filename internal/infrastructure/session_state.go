package infrastructure

import "github.com/loorksy/ERPwhatsapp/internal/entities"

// allowed status moves; qr may repeat as codes rotate, ready may repeat after reconnects
var sessionTransitions = map[string][]string{
	"":                           {entities.SessionInitializing},
	entities.SessionInitializing: {entities.SessionQR, entities.SessionReady, entities.SessionDisconnected},
	entities.SessionQR:           {entities.SessionQR, entities.SessionReady, entities.SessionDisconnected},
	entities.SessionReady:        {entities.SessionReady, entities.SessionDisconnected},
	entities.SessionDisconnected: {entities.SessionInitializing},
}

func canTransition(from, to string) bool {
	for _, s := range sessionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sessionState is the registry entry of one tenant. Callers hold the owning lock.
type sessionState struct {
	status string
	qr     string
	phone  string
}

func newSessionState() *sessionState {
	return &sessionState{}
}

func (s *sessionState) set(status string) bool {
	if !canTransition(s.status, status) {
		return false
	}
	s.status = status
	return true
}

func (s *sessionState) setQR(code string) bool {
	if !s.set(entities.SessionQR) {
		return false
	}
	s.qr = code
	return true
}

func (s *sessionState) setReady(phone string) bool {
	if !s.set(entities.SessionReady) {
		return false
	}
	s.qr = ""
	if phone != "" {
		s.phone = phone
	}
	return true
}

func (s *sessionState) setDisconnected() bool {
	if s.status == entities.SessionDisconnected || !s.set(entities.SessionDisconnected) {
		return false
	}
	s.qr = ""
	return true
}

func (s *sessionState) snapshot() entities.SessionStatus {
	status := s.status
	if status == "" {
		status = entities.SessionDisconnected
	}
	out := entities.SessionStatus{Status: status, IsReady: status == entities.SessionReady}
	if s.phone != "" {
		phone := s.phone
		out.PhoneNumber = &phone
	}
	return out
}
