package entities

import (
	"encoding/json"
	"time"
)

const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int             `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   *string         `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}

type NotificationInput struct {
	UserID   int
	Type     string
	Title    string
	Message  string
	Metadata map[string]any
}
