package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

type fixedPlans map[string]int

func (p fixedPlans) Get(_ context.Context, id string) (*entities.Plan, error) {
	limit, ok := p[id]
	if !ok {
		return nil, nil
	}
	return &entities.Plan{ID: id, MessageLimit: limit}, nil
}

type fixedMonthUsage int

func (u fixedMonthUsage) MonthSent(context.Context, int) (int, error) { return int(u), nil }

func TestQuotaRoute(t *testing.T) {
	users := newMemUsers(&entities.User{ID: 3, Email: "shop@example.com", Plan: "free", Status: entities.UserStatusActive})
	s := newTestServer(t, withServices(func(svc *Services) {
		svc.Quota = usecases.NewMessageQuota(users, fixedPlans{"free": 500}, fixedMonthUsage(125))
	}))

	w := s.do(t, request{method: http.MethodGet, path: "/api/usage/quota", token: tokenFor(t, 3, entities.RoleUser)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quota := decode(t, w)["quota"].(map[string]any)
	assert.Equal(t, "free", quota["plan"])
	assert.EqualValues(t, 500, quota["limit"])
	assert.EqualValues(t, 375, quota["remaining"])
	assert.EqualValues(t, 25, quota["percent"])

	w = s.do(t, request{method: http.MethodGet, path: "/api/usage/quota", token: tokenFor(t, 77, entities.RoleUser)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, request{method: http.MethodGet, path: "/api/usage/quota"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
