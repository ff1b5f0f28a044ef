package infrastructure

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 256
)

// WSMessage is the frame pushed to dashboard clients.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// WSClient is one websocket connection joined to a user room.
type WSClient struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	room   string
	closed bool
}

// Hub fans events out to per-user rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*WSClient]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*WSClient]struct{})}
}

func RoomFor(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// Attach joins conn to the user's room and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, userID int) *WSClient {
	client := &WSClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		hub:  h,
		room: RoomFor(userID),
	}

	h.mu.Lock()
	members, ok := h.rooms[client.room]
	if !ok {
		members = make(map[*WSClient]struct{})
		h.rooms[client.room] = members
	}
	members[client] = struct{}{}
	h.mu.Unlock()

	zap.L().Debug("ws: client joined", zap.String("room", client.room))
	go client.writePump()
	go client.readPump()
	return client
}

// Emit sends an event to every connection of the user. Slow clients are dropped.
func (h *Hub) Emit(userID int, event string, data any) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		zap.L().Error("ws: encode event", zap.String("event", event), zap.Error(err))
		return
	}

	room := RoomFor(userID)
	var slow []*WSClient

	h.mu.RLock()
	for client := range h.rooms[room] {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		zap.L().Warn("ws: dropping slow client", zap.String("room", room))
		h.leave(client)
	}
}

func (h *Hub) RoomSize(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomFor(userID)])
}

func (h *Hub) leave(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := []*WSClient{}
	for _, members := range h.rooms {
		for client := range members {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.leave(client)
	}
}

// readPump only services control frames; dashboard clients do not send events.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("ws: read error", zap.String("room", c.room), zap.Error(err))
			}
			return
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
