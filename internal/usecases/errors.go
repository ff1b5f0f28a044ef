package usecases

import (
	"errors"
	"strings"

	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountSuspended        = errors.New("account suspended")
	ErrInvalidResetToken       = errors.New("invalid or expired reset token")
	ErrUnsupportedProvider     = errors.New("provider is not supported")
	ErrProviderSettingsMissing = errors.New("provider settings not found for user")
	ErrSessionNotReady         = infrastructure.ErrSessionNotReady
	ErrRateLimited             = errors.New("too many messages, slow down")
	ErrQuotaExceeded           = errors.New("monthly message limit reached")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected field of a request.
type ValidationError struct {
	Errors []FieldError
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Add(field, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was added.
func (v *ValidationError) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

func clamp(v, def, lo, hi int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
