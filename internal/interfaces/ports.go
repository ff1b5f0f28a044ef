// Package interfaces holds the ports the usecases talk through.
package interfaces

import (
	"context"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

// Broadcaster pushes an event to every socket of a tenant.
type Broadcaster interface {
	Emit(userID int, event string, data any)
}

// Messenger delivers outbound WhatsApp text through a tenant's session.
type Messenger interface {
	Send(ctx context.Context, userID int, phone, text string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type Alerter interface {
	Notify(n entities.Notification)
}

type Mailer interface {
	Enabled() bool
	Send(to, subject, body string) error
}

type Localizer interface {
	T(lang, id string, data map[string]any) string
}
