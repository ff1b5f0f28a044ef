package entities

// Session status values of a tenant's WhatsApp connection.
const (
	SessionInitializing = "initializing"
	SessionQR           = "qr"
	SessionReady        = "ready"
	SessionDisconnected = "disconnected"
)

const (
	ReasonManual      = "manual_disconnect"
	ReasonAuthFailure = "auth_failure"
	ReasonLoggedOut   = "logged_out"
	ReasonQRTimeout   = "qr_timeout"
	ReasonConnection  = "connection_lost"
)

type SessionStatus struct {
	Status      string  `json:"status"`
	IsReady     bool    `json:"isReady"`
	PhoneNumber *string `json:"phoneNumber"`
}

type QRPayload struct {
	QR    string `json:"qr"`
	Image string `json:"image"`
}
