package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := h.middleware.origins[strings.TrimRight(origin, "/")]
			return ok
		},
	}
}

// ServeWS joins an authenticated dashboard socket to the user's room.
// Browsers cannot set headers on the handshake, so the token rides in ?token=.
func (h *Handler) ServeWS(c *gin.Context) {
	if h.svc.Hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
		return
	}
	raw := c.Query("token")
	if raw == "" {
		raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	claims, err := h.middleware.tokens.ParseToken(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
		return
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("ws: upgrade failed", zap.Int("user_id", userID), zap.Error(err))
		return
	}
	h.svc.Hub.Attach(conn, userID)
	zap.L().Debug("ws: dashboard connected", zap.Int("user_id", userID), zap.Int("connections", h.svc.Hub.RoomSize(userID)))
}
