package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const (
	testSecret = "test-secret"
	testOrigin = "http://localhost:5173"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]*entities.User
}

func newMemUsers(users ...*entities.User) *memUsers {
	m := &memUsers{byID: make(map[int]*entities.User)}
	for _, u := range users {
		m.byID[u.ID] = u
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	if user.Status == "" {
		user.Status = entities.UserStatusActive
	}
	if user.Plan == "" {
		user.Plan = "free"
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) TouchLastActive(context.Context, int) error { return nil }

func (m *memUsers) SetRole(_ context.Context, id int, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Role = role
	}
	return nil
}

func (m *memUsers) SetResetToken(context.Context, int, string, time.Time) error { return nil }

func (m *memUsers) GetByResetToken(context.Context, string) (*entities.User, error) {
	return nil, nil
}

func (m *memUsers) UpdatePassword(context.Context, int, string) error { return nil }

type memQuickReplies struct {
	mu     sync.Mutex
	nextID int64
	rows   []entities.QuickReply
}

func (m *memQuickReplies) List(_ context.Context, userID int, search, category string) ([]entities.QuickReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.QuickReply
	for _, q := range m.rows {
		if q.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(q.Title+q.Content, search) {
			continue
		}
		if category != "" && (q.Category == nil || *q.Category != category) {
			continue
		}
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memQuickReplies) Create(_ context.Context, q *entities.QuickReply) (*entities.QuickReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q.ID = m.nextID
	q.SortOrder = len(m.rows)
	m.rows = append(m.rows, *q)
	return q, nil
}

func (m *memQuickReplies) Update(_ context.Context, userID int, id int64, title, content, category, shortcut *string) (*entities.QuickReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		q := &m.rows[i]
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

func (m *memQuickReplies) Delete(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.rows {
		if q.ID == id && q.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memQuickReplies) Reorder(_ context.Context, userID int, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pos, id := range ids {
		for i := range m.rows {
			if m.rows[i].ID == id && m.rows[i].UserID == userID {
				m.rows[i].SortOrder = pos
			}
		}
	}
	return nil
}

type testServer struct {
	engine *gin.Engine
	users  *memUsers
	auth   *usecases.AuthUsecase
}

type serverOption func(*testOptions)

type testOptions struct {
	svc      Services
	opts     Options
	apiMax   int
	loginMax int
}

func withCSRF(g *CSRF) serverOption {
	return func(o *testOptions) { o.opts.CSRF = g }
}

func withAPILimit(n int) serverOption {
	return func(o *testOptions) { o.apiMax = n }
}

func withLoginLimit(n int) serverOption {
	return func(o *testOptions) { o.loginMax = n }
}

func withServices(fn func(*Services)) serverOption {
	return func(o *testOptions) { fn(&o.svc) }
}

func newTestServer(t *testing.T, options ...serverOption) *testServer {
	t.Helper()
	require.NoError(t, RegisterValidators())

	users := newMemUsers()
	auth := usecases.NewAuthUsecase(users, usecases.AuthConfig{JWTSecret: testSecret}, nil, nil)

	o := &testOptions{
		svc:      Services{Auth: auth},
		opts:     Options{AppEnv: "test"},
		apiMax:   1000,
		loginMax: 1000,
	}
	for _, fn := range options {
		fn(o)
	}

	mw := NewMiddleware(auth,
		infrastructure.NewKeyedRateLimiter(o.apiMax, time.Minute),
		infrastructure.NewAttemptLimiter(o.loginMax, time.Minute),
		[]string{testOrigin})
	r := gin.New()
	SetupRoutes(r, o.svc, mw, o.opts)
	return &testServer{engine: r, users: users, auth: auth}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		switch b := req.body.(type) {
		case string:
			body.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&body).Encode(b))
		}
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.RemoteAddr = "192.0.2.10:4321"
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, r)
	return w
}

func tokenFor(t *testing.T, userID int, role string) string {
	t.Helper()
	now := time.Now()
	claims := usecases.Claims{
		Email: "user" + strconv.Itoa(userID) + "@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func strp(s string) *string { return &s }
