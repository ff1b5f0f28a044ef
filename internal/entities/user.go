package entities

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

type User struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"fullName"`
	Phone        *string    `json:"phone"`
	CompanyName  *string    `json:"companyName"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	Plan         string     `json:"plan"`
	Language     string     `json:"language"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Plan     string
	Status   string
	Search   string
	Page     int
	PageSize int
}

// UserUsage is the per-user export/detail row of the admin console.
type UserUsage struct {
	User
	MessagesSent     int `json:"messagesSent" csv:"-"`
	MessagesReceived int `json:"messagesReceived" csv:"-"`
	AICalls          int `json:"aiCalls" csv:"-"`
}

// UserExportRow is the flat shape written by the CSV/XLSX export.
type UserExportRow struct {
	ID          int    `csv:"id"`
	Email       string `csv:"email"`
	FullName    string `csv:"full_name"`
	CompanyName string `csv:"company"`
	Plan        string `csv:"plan"`
	Status      string `csv:"status"`
	CreatedAt   string `csv:"created_at"`
	Messages    int    `csv:"messages"`
	AICalls     int    `csv:"api_calls"`
}
