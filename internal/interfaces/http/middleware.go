package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxEmail     = "email"
	ctxRequestID = "request_id"

	headerRequestID = "X-Request-ID"
)

type TokenParser interface {
	ParseToken(raw string) (*usecases.Claims, error)
}

type Middleware struct {
	tokens     TokenParser
	apiLimiter *infrastructure.KeyedRateLimiter
	logins     *infrastructure.AttemptLimiter
	origins    map[string]struct{}
}

func NewMiddleware(tokens TokenParser, apiLimiter *infrastructure.KeyedRateLimiter, logins *infrastructure.AttemptLimiter, origins []string) *Middleware {
	m := &Middleware{
		tokens:     tokens,
		apiLimiter: apiLimiter,
		logins:     logins,
		origins:    make(map[string]struct{}, len(origins)),
	}
	for _, o := range origins {
		m.origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return m
}

func (m *Middleware) authenticate(c *gin.Context, raw string) bool {
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return false
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id <= 0 {
		return false
	}
	c.Set(ctxUserID, id)
	c.Set(ctxRole, claims.Role)
	c.Set(ctxEmail, claims.Email)
	return true
}

func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		if !m.authenticate(c, strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}
		c.Next()
	}
}

// AdminRequired must follow AuthRequired.
func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != entities.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden: insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RateLimit keys on the authenticated user when known, else on the client IP.
func (m *Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := c.GetInt(ctxUserID); id > 0 {
			key = "user:" + strconv.Itoa(id)
		}
		if !m.apiLimiter.Allow(key) {
			wait := m.apiLimiter.WaitTime(key)
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, please try again later."})
			return
		}
		c.Next()
	}
}

// LoginLimiter counts every login attempt per client IP.
func (m *Middleware) LoginLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !m.logins.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(m.logins.RetryAfter(key).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts. Please try again later."})
			return
		}
		c.Next()
	}
}

// ResetLoginAttempts clears the caller's window after a successful login.
func (m *Middleware) ResetLoginAttempts(c *gin.Context) {
	m.logins.Reset(c.ClientIP())
}

// CORSMiddleware reflects allow-listed origins with credentials.
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := m.origins[strings.TrimRight(origin, "/")]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not allowed by CORS"})
				return
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, X-CSRF-Token, X-Request-ID, Accept, Origin, Cache-Control, X-Requested-With")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID propagates or mints X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := c.GetInt(ctxUserID); id > 0 {
			fields = append(fields, zap.Int("user_id", id))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.L().Error("http request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			zap.L().Warn("http request", fields...)
		default:
			zap.L().Info("http request", fields...)
		}
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none'")
		if production {
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int {
	return c.GetInt(ctxUserID)
}
