package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	csrf "github.com/utrack/gin-csrf"
	"go.uber.org/zap"
)

const csrfSessionName = "erp.sid"

// CSRF keeps a per-session salt in a signed cookie session; unsafe requests
// must echo the derived token in a header. The token is also mirrored into a
// readable cookie for the SPA.
type CSRF struct {
	cookieName string
	headerName string
	domain     string
	secure     bool
	exempt     map[string]struct{}
	store      cookie.Store
	protect    gin.HandlerFunc
}

func NewCSRF(secret, cookieName, headerName, domain string, secure bool, exempt ...string) *CSRF {
	g := &CSRF{
		cookieName: cookieName,
		headerName: headerName,
		domain:     domain,
		secure:     secure,
		exempt:     make(map[string]struct{}, len(exempt)),
		store:      cookie.NewStore([]byte(secret)),
	}
	for _, p := range exempt {
		g.exempt[p] = struct{}{}
	}
	g.store.Options(sessions.Options{
		Path:     "/",
		Domain:   domain,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	g.protect = csrf.Middleware(csrf.Options{
		Secret:        secret,
		IgnoreMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		TokenGetter:   func(c *gin.Context) string { return c.GetHeader(g.headerName) },
		ErrorFunc: func(c *gin.Context) {
			zap.L().Warn("CSRF token validation failed", zap.String("path", c.Request.URL.Path), zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid CSRF token"})
		},
	})
	return g
}

// Handlers returns the session loader followed by the token check.
func (g *CSRF) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{sessions.Sessions(csrfSessionName, g.store), g.guard}
}

func (g *CSRF) guard(c *gin.Context) {
	if _, ok := g.exempt[c.Request.URL.Path]; ok {
		c.Next()
		return
	}
	g.protect(c)
}

// Issue serves GET /api/csrf-token.
func (g *CSRF) Issue(c *gin.Context) {
	token := csrf.GetToken(c)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cookieName, token, 0, "/", g.domain, g.secure, false)
	c.Header(g.headerName, token)
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}
