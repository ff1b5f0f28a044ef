package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueCSRF(t *testing.T, s *testServer, cookies []*http.Cookie) (string, []*http.Cookie) {
	t.Helper()
	w := s.do(t, request{method: http.MethodGet, path: "/api/csrf-token", cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := decode(t, w)["csrfToken"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, token, w.Header().Get("X-CSRF-Token"))
	return token, w.Result().Cookies()
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFIssue(t *testing.T) {
	s := newTestServer(t, withCSRF(NewCSRF("secret", "XSRF-TOKEN", "X-CSRF-Token", "", false)))

	token, cookies := issueCSRF(t, s, nil)

	readable := cookieNamed(cookies, "XSRF-TOKEN")
	require.NotNil(t, readable)
	assert.Equal(t, token, readable.Value)
	assert.False(t, readable.HttpOnly)

	session := cookieNamed(cookies, csrfSessionName)
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	again, _ := issueCSRF(t, s, []*http.Cookie{session})
	assert.Equal(t, token, again, "token is stable for a session")

	fresh, _ := issueCSRF(t, s, nil)
	assert.NotEqual(t, token, fresh)
}

func TestCSRFMiddleware(t *testing.T) {
	s := newTestServer(t, withCSRF(NewCSRF("secret", "XSRF-TOKEN", "X-CSRF-Token", "", false, "/api/auth/logout")))
	token, cookies := issueCSRF(t, s, nil)
	login := map[string]string{"email": "nobody@example.com", "password": "whatever"}

	tests := []struct {
		name    string
		headers map[string]string
		cookies []*http.Cookie
		status  int
	}{
		{"no token", nil, cookies, http.StatusForbidden},
		{"header without session", map[string]string{"X-CSRF-Token": token}, nil, http.StatusForbidden},
		{"mismatch", map[string]string{"X-CSRF-Token": token + "x"}, cookies, http.StatusForbidden},
		{"valid", map[string]string{"X-CSRF-Token": token}, cookies, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: login, headers: tt.headers, cookies: tt.cookies})
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "Invalid CSRF token", decode(t, w)["message"])
			}
		})
	}

	w := s.do(t, request{method: http.MethodPost, path: "/api/auth/logout"})
	assert.Equal(t, http.StatusOK, w.Code, "exempt path")

	w = s.do(t, request{method: http.MethodGet, path: "/api/health"})
	assert.Equal(t, http.StatusOK, w.Code, "safe methods pass")
}

func TestCSRFRejectsForeignSecret(t *testing.T) {
	s := newTestServer(t, withCSRF(NewCSRF("secret", "XSRF-TOKEN", "X-CSRF-Token", "", false)))
	token, cookies := issueCSRF(t, s, nil)

	other := newTestServer(t, withCSRF(NewCSRF("another-secret", "XSRF-TOKEN", "X-CSRF-Token", "", false)))
	w := other.do(t, request{
		method:  http.MethodPost,
		path:    "/api/auth/login",
		body:    map[string]string{"email": "nobody@example.com", "password": "whatever"},
		headers: map[string]string{"X-CSRF-Token": token},
		cookies: cookies,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
