package http

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

type memAdminUsers struct {
	rows    []entities.UserUsage
	filters []entities.UserFilter
	deleted []int
}

func (m *memAdminUsers) Counts(context.Context) (int, int, error) { return len(m.rows), len(m.rows), nil }

func (m *memAdminUsers) ListWithUsage(_ context.Context, f entities.UserFilter) ([]entities.UserUsage, int, error) {
	m.filters = append(m.filters, f)
	return m.rows, len(m.rows), nil
}

func (m *memAdminUsers) find(id int) *entities.User {
	for i := range m.rows {
		if m.rows[i].ID == id {
			return &m.rows[i].User
		}
	}
	return nil
}

func (m *memAdminUsers) GetByID(_ context.Context, id int) (*entities.User, error) {
	return m.find(id), nil
}

func (m *memAdminUsers) UpdateStatus(_ context.Context, id int, status string) (*entities.User, error) {
	u := m.find(id)
	if u != nil {
		u.Status = status
	}
	return u, nil
}

func (m *memAdminUsers) UpdatePlan(_ context.Context, id int, plan string) (*entities.User, error) {
	u := m.find(id)
	if u != nil {
		u.Plan = plan
	}
	return u, nil
}

func (m *memAdminUsers) Delete(_ context.Context, id int) (bool, error) {
	if m.find(id) == nil {
		return false, nil
	}
	m.deleted = append(m.deleted, id)
	return true, nil
}

type noSessions struct{}

func (noSessions) ConnectedUsers() []int { return nil }

func (noSessions) Disconnect(int, string) error { return infrastructure.ErrNoSession }

func (noSessions) Logout(context.Context, int) error { return nil }

func newAdminServer(t *testing.T, options ...serverOption) (*testServer, *memAdminUsers) {
	users := &memAdminUsers{rows: []entities.UserUsage{{
		User: entities.User{
			ID: 5, Email: "ahmed@example.com", FullName: "Ahmed Ali", Role: entities.RoleUser,
			Status: entities.UserStatusActive, Plan: "pro", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		MessagesSent: 10, MessagesReceived: 5, AICalls: 3,
	}}}
	options = append(options, withServices(func(svc *Services) {
		svc.Admin = usecases.NewAdminService(users, nil, nil, nil, nil, noSessions{})
	}))
	s := newTestServer(t, options...)
	return s, users
}

func TestAdminRoutesAreRateLimited(t *testing.T) {
	s, _ := newAdminServer(t, withAPILimit(2))
	token := tokenFor(t, 1, entities.RoleAdmin)

	for i := 0; i < 2; i++ {
		w := s.do(t, request{method: http.MethodGet, path: "/api/admin/users", token: token})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := s.do(t, request{method: http.MethodGet, path: "/api/admin/users", token: token})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAdminListUsers(t *testing.T) {
	s, users := newAdminServer(t)
	token := tokenFor(t, 1, entities.RoleAdmin)

	w := s.do(t, request{method: http.MethodGet, path: "/api/admin/users?status=active&page=2&pageSize=500&search=%20ahmed%20", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 100, body["pageSize"])

	require.Len(t, users.filters, 1)
	assert.Equal(t, entities.UserFilter{Status: "active", Search: "ahmed", Page: 2, PageSize: 100}, users.filters[0])

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/users?status=banned", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/users?page=two", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminExportUsers(t *testing.T) {
	s, _ := newAdminServer(t)
	token := tokenFor(t, 1, entities.RoleAdmin)

	w := s.do(t, request{method: http.MethodGet, path: "/api/admin/users/export", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="users-`)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "5,ahmed@example.com,Ahmed Ali,,pro,active,2024-03-01T10:00:00Z,15,3", lines[1])

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/users/export?format=pdf", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminUserActions(t *testing.T) {
	s, users := newAdminServer(t)
	token := tokenFor(t, 1, entities.RoleAdmin)

	w := s.do(t, request{method: http.MethodPatch, path: "/api/admin/users/5/status", token: token, body: map[string]string{"status": "suspended"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entities.UserStatusSuspended, decode(t, w)["user"].(map[string]any)["status"])

	w = s.do(t, request{method: http.MethodPatch, path: "/api/admin/users/5/status", token: token, body: map[string]string{"status": "gone"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/users/99", token: token})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, userNotFound, decode(t, w)["message"])

	w = s.do(t, request{method: http.MethodDelete, path: "/api/admin/users/1", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code, "admins cannot delete themselves")

	w = s.do(t, request{method: http.MethodDelete, path: "/api/admin/users/5", token: token})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int{5}, users.deleted)
}
