package entities

import "time"

const (
	ConversationOpen     = "open"
	ConversationPending  = "pending"
	ConversationClosed   = "closed"
	ConversationArchived = "archived"
)

var ConversationStatuses = []string{ConversationOpen, ConversationPending, ConversationClosed, ConversationArchived}

type Conversation struct {
	ID            int64      `json:"id"`
	UserID        int        `json:"userId"`
	ContactPhone  string     `json:"contactPhone"`
	ContactName   *string    `json:"contactName"`
	Status        string     `json:"status"`
	Priority      int        `json:"priority"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AcceptsBotReplies is false once an operator closed or archived the thread.
func (c *Conversation) AcceptsBotReplies() bool {
	return c.Status != ConversationClosed && c.Status != ConversationArchived
}

type ConversationFilter struct {
	Status   string
	Priority *int
	Search   string
	Oldest   bool
	Page     int
	PageSize int
}

type ConversationUpdate struct {
	Status   *string `json:"status"`
	Priority *int    `json:"priority"`
}
