package entities

// Websocket event names pushed to the user:<id> room.
const (
	EventWhatsAppQR          = "whatsapp:qr"
	EventWhatsAppStatus      = "whatsapp:status"
	EventNotificationNew     = "notification:new"
	EventNotificationRead    = "notification:read"
	EventNotificationReadAll = "notification:read-all"
	EventNotificationDeleted = "notification:deleted"
	EventMessageNew          = "message:new"
	EventConversationUpdated = "conversation:updated"
	EventConversationNew     = "conversation:new"
)

// Analytics summary shapes.
type AnalyticsSummary struct {
	TotalMessages     int     `json:"totalMessages"`
	Inbound           int     `json:"inbound"`
	Outbound          int     `json:"outbound"`
	ResponseRate      float64 `json:"responseRate"`
	OpenConversations int     `json:"openConversations"`
}

type DailyTraffic struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}
