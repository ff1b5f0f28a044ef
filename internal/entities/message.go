package entities

import "time"

const (
	SenderContact = "contact"
	SenderUser    = "user"
	SenderBot     = "bot"
	SenderSystem  = "system"
)

type Message struct {
	ID               int64     `json:"id"`
	ConversationID   int64     `json:"conversationId"`
	SenderType       string    `json:"senderType"`
	MessageText      *string   `json:"messageText"`
	MediaURL         *string   `json:"mediaUrl"`
	MediaType        *string   `json:"mediaType,omitempty"`
	ExternalID       *string   `json:"externalId,omitempty"`
	Intent           *string   `json:"intent,omitempty"`
	IntentConfidence *float64  `json:"intentConfidence,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	IsFromBot        bool      `json:"isFromBot"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (m *Message) Text() string {
	if m.MessageText == nil {
		return ""
	}
	return *m.MessageText
}

// HasContent reports whether the message carries text or media.
func (m *Message) HasContent() bool {
	return (m.MessageText != nil && *m.MessageText != "") || (m.MediaURL != nil && *m.MediaURL != "") ||
		(m.MediaType != nil && *m.MediaType != "")
}

// InboundMessage is what a WhatsApp session hands to the intake pipeline.
type InboundMessage struct {
	ExternalID string
	From       string
	To         string
	FromMe     bool
	PushName   string
	Body       string
	MediaType  string
	MediaURL   string
	Timestamp  time.Time
}

// Intent is the keyword classifier verdict.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

const (
	IntentGreeting = "greeting"
	IntentSupport  = "support"
	IntentPricing  = "pricing"
	IntentHandoff  = "handoff"
	IntentUnknown  = "unknown"
)
