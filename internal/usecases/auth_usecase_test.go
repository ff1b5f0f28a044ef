package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type fakeMailer struct {
	enabled bool
	to      []string
	bodies  []string
}

func (m *fakeMailer) Enabled() bool { return m.enabled }

func (m *fakeMailer) Send(to, _ string, body string) error {
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	return nil
}

func newTestAuth(expose bool) (*AuthUsecase, *fakeUsers, *fakeMailer) {
	users := newFakeUsers()
	mailer := &fakeMailer{enabled: true}
	uc := NewAuthUsecase(users, AuthConfig{
		JWTSecret:      "test-secret",
		JWTExpiresIn:   time.Hour,
		ResetTokenTTL:  30 * time.Minute,
		FrontendURL:    "http://app.local/",
		ExposeResetKey: expose,
	}, mailer, fakeLocalizer{})
	return uc, users, mailer
}

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestAuth(true)

	user, token, err := uc.Register(ctx, RegisterInput{
		Email:    "  Owner@Shop.COM ",
		Password: "supersecret",
		FullName: "Shop Owner",
		Phone:    "+966500000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@shop.com", user.Email)
	assert.Equal(t, entities.RoleUser, user.Role)
	assert.Nil(t, user.CompanyName)

	claims, err := uc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "owner@shop.com", claims.Email)
	assert.Equal(t, entities.RoleUser, claims.Role)

	_, _, err = uc.Register(ctx, RegisterInput{Email: "owner@shop.com", Password: "another1", FullName: "x"})
	assert.ErrorIs(t, err, ErrConflict)

	_, _, err = uc.Login(ctx, LoginInput{Email: "OWNER@shop.com", Password: "supersecret"})
	assert.NoError(t, err)

	_, _, err = uc.Login(ctx, LoginInput{Email: "owner@shop.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = uc.Login(ctx, LoginInput{Email: "nobody@shop.com", Password: "supersecret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthLoginSuspended(t *testing.T) {
	ctx := context.Background()
	uc, users, _ := newTestAuth(false)
	user, _, err := uc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "password1", FullName: "A"})
	require.NoError(t, err)
	users.byID[user.ID].Status = entities.UserStatusSuspended

	_, _, err = uc.Login(ctx, LoginInput{Email: "a@b.co", Password: "password1"})
	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestAuthParseTokenRejectsForeignSecret(t *testing.T) {
	uc, _, _ := newTestAuth(false)
	other := NewAuthUsecase(newFakeUsers(), AuthConfig{JWTSecret: "other"}, nil, fakeLocalizer{})
	token, err := other.issueToken(&entities.User{ID: 4, Email: "x@y.z", Role: entities.RoleAdmin})
	require.NoError(t, err)

	_, err = uc.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthPasswordReset(t *testing.T) {
	ctx := context.Background()
	uc, _, mailer := newTestAuth(true)
	_, _, err := uc.Register(ctx, RegisterInput{Email: "reset@me.io", Password: "oldpassword", FullName: "R"})
	require.NoError(t, err)

	token, err := uc.ForgotPassword(ctx, "Reset@Me.io")
	require.NoError(t, err)
	require.Len(t, token, 64)

	require.Len(t, mailer.to, 1)
	assert.Equal(t, "reset@me.io", mailer.to[0])
	assert.Contains(t, mailer.bodies[0], "Minutes=30")
	assert.Contains(t, mailer.bodies[0], "Link=http://app.local/reset-password?token="+token)

	assert.ErrorIs(t, uc.ResetPassword(ctx, "not-the-token", "newpassword"), ErrInvalidResetToken)
	require.NoError(t, uc.ResetPassword(ctx, token, "newpassword"))
	assert.ErrorIs(t, uc.ResetPassword(ctx, token, "newpassword"), ErrInvalidResetToken, "token is single use")

	_, _, err = uc.Login(ctx, LoginInput{Email: "reset@me.io", Password: "newpassword"})
	assert.NoError(t, err)
}

func TestAuthForgotPasswordQuietPaths(t *testing.T) {
	ctx := context.Background()

	uc, _, mailer := newTestAuth(false)
	token, err := uc.ForgotPassword(ctx, "ghost@nowhere.io")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, mailer.to)

	_, _, err = uc.Register(ctx, RegisterInput{Email: "prod@me.io", Password: "password1", FullName: "P"})
	require.NoError(t, err)
	token, err = uc.ForgotPassword(ctx, "prod@me.io")
	require.NoError(t, err)
	assert.Empty(t, token, "production never exposes the token")
	assert.Len(t, mailer.to, 1)
}

func TestAuthEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	uc, users, _ := newTestAuth(false)

	require.NoError(t, uc.EnsureAdmin(ctx, "", ""))
	assert.Empty(t, users.byID)

	require.NoError(t, uc.EnsureAdmin(ctx, "Root@Corp.io", "rootpassword"))
	admin, err := users.GetByEmail(ctx, "root@corp.io")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, entities.RoleAdmin, admin.Role)

	_, _, err = uc.Register(ctx, RegisterInput{Email: "plain@corp.io", Password: "password1", FullName: "P"})
	require.NoError(t, err)
	require.NoError(t, uc.EnsureAdmin(ctx, "plain@corp.io", "ignored1"))
	promoted, err := users.GetByEmail(ctx, "plain@corp.io")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, promoted.Role)
}
