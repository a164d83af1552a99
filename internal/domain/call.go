package domain

import "time"

// CallStatus is one participant's view of a call attempt lifecycle.
type CallStatus string

const (
	StatusIdle         CallStatus = "idle"
	StatusConnecting   CallStatus = "connecting"
	StatusConnected    CallStatus = "connected"
	StatusReconnecting CallStatus = "reconnecting"
	StatusDisconnected CallStatus = "disconnected"
	StatusError        CallStatus = "error"
)

// RecordStatus is the persisted outcome of a call record.
type RecordStatus string

const (
	RecordMissed    RecordStatus = "missed"
	RecordCompleted RecordStatus = "completed"
	RecordRejected  RecordStatus = "rejected"
)

// CallRecord is the call-history row handed to the persistence
// collaborator. A record starts as missed and is updated as the call
// progresses; writes are fire-and-forget from the session's view.
type CallRecord struct {
	ID            string       `json:"id"`
	CallerID      UserID       `json:"callerId"`
	CallerName    string       `json:"callerName"`
	RecipientID   UserID       `json:"recipientId"`
	RecipientName string       `json:"recipientName"`
	StartTime     time.Time    `json:"startTime"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	Duration      int          `json:"duration,omitempty"` // seconds
	Status        RecordStatus `json:"status"`
	CallType      MediaKind    `json:"callType"`
	Encrypted     bool         `json:"encrypted"`
	Transferred   bool         `json:"transferred,omitempty"`
	TransferredTo UserID       `json:"transferredTo,omitempty"`
}

// CallUpdate carries the mutable fields of a call record. Nil means
// leave unchanged.
type CallUpdate struct {
	Status        *RecordStatus
	EndTime       *time.Time
	Duration      *int
	Transferred   *bool
	TransferredTo *UserID
}

// RelayCredentials are short-lived TURN credentials minted by the
// server, or the static fallback set when minting is unavailable.
type RelayCredentials struct {
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
	TTL        int      `json:"ttl"`
	URIs       []string `json:"uris"`
}
