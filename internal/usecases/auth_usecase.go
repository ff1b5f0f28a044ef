package usecases

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/interfaces"
)

const bcryptCost = 12

type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByID(ctx context.Context, id int) (*entities.User, error)
	TouchLastActive(ctx context.Context, id int) error
	SetRole(ctx context.Context, id int, role string) error
	SetResetToken(ctx context.Context, id int, tokenHash string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, tokenHash string) (*entities.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	FullName    string `json:"fullName" binding:"required"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
	CompanyName string `json:"companyName" binding:"omitempty,min=2"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Claims are the access token claims; sub carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecret      string
	JWTExpiresIn   time.Duration
	ResetTokenTTL  time.Duration
	FrontendURL    string
	ExposeResetKey bool
}

type AuthUsecase struct {
	users  UserStore
	cfg    AuthConfig
	mailer interfaces.Mailer
	tr     interfaces.Localizer
	now    func() time.Time
}

func NewAuthUsecase(users UserStore, cfg AuthConfig, mailer interfaces.Mailer, tr interfaces.Localizer) *AuthUsecase {
	if cfg.JWTExpiresIn <= 0 {
		cfg.JWTExpiresIn = 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &AuthUsecase{users: users, cfg: cfg, mailer: mailer, tr: tr, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalTrimmed(v string) *string {
	return optional(strings.TrimSpace(v))
}

func (uc *AuthUsecase) issueToken(user *entities.User) (string, error) {
	now := uc.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(uc.cfg.JWTExpiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates an access token and returns its claims.
func (uc *AuthUsecase) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(uc.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (uc *AuthUsecase) Register(ctx context.Context, in RegisterInput) (*entities.User, string, error) {
	email := normalizeEmail(in.Email)
	existing, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrConflict
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, "", err
	}
	user := &entities.User{
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        optionalTrimmed(in.Phone),
		CompanyName:  optionalTrimmed(in.CompanyName),
		Role:         entities.RoleUser,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := uc.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (uc *AuthUsecase) Login(ctx context.Context, in LoginInput) (*entities.User, string, error) {
	user, err := uc.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.Status == entities.UserStatusSuspended {
		return nil, "", ErrAccountSuspended
	}

	if err := uc.users.TouchLastActive(ctx, user.ID); err != nil {
		zap.L().Warn("auth: touch last active failed", zap.Int("user_id", user.ID), zap.Error(err))
	}
	token, err := uc.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (uc *AuthUsecase) Me(ctx context.Context, userID int) (*entities.User, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ForgotPassword issues a reset token for a known email. The plain token is
// returned only when ExposeResetKey is set; unknown emails return "".
func (uc *AuthUsecase) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := uc.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	if err := uc.users.SetResetToken(ctx, user.ID, hashToken(token), uc.now().Add(uc.cfg.ResetTokenTTL)); err != nil {
		return "", err
	}

	uc.mailResetLink(user, token)
	if !uc.cfg.ExposeResetKey {
		return "", nil
	}
	return token, nil
}

func (uc *AuthUsecase) mailResetLink(user *entities.User, token string) {
	if uc.mailer == nil || !uc.mailer.Enabled() {
		return
	}
	data := map[string]any{
		"Minutes": int(uc.cfg.ResetTokenTTL / time.Minute),
		"Link":    strings.TrimRight(uc.cfg.FrontendURL, "/") + "/reset-password?token=" + token,
	}
	subject := uc.tr.T(user.Language, "ResetSubject", data)
	body := uc.tr.T(user.Language, "ResetBody", data)
	if err := uc.mailer.Send(user.Email, subject, body); err != nil {
		zap.L().Error("auth: reset mail failed", zap.Int("user_id", user.ID), zap.Error(err))
	}
}

func (uc *AuthUsecase) ResetPassword(ctx context.Context, token, password string) error {
	user, err := uc.users.GetByResetToken(ctx, hashToken(token))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	return uc.users.UpdatePassword(ctx, user.ID, string(hashed))
}

// EnsureAdmin creates the admin account on startup, or promotes an existing user.
func (uc *AuthUsecase) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	email = normalizeEmail(email)
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user != nil {
		if user.Role == entities.RoleAdmin {
			return nil
		}
		return uc.users.SetRole(ctx, user.ID, entities.RoleAdmin)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	return uc.users.Create(ctx, &entities.User{
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     "Administrator",
		Role:         entities.RoleAdmin,
	})
}
