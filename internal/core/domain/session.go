package domain

import "time"

// SessionState is everything the administration keeps in the user session.
// It is stored under a single root key so that logout can clear it at once.
type SessionState struct {
	IdentityID          string            `json:"identity_id,omitempty"`
	Authenticated       bool              `json:"authenticated"`
	OtpPending          bool              `json:"otp_pending,omitempty"`
	HeartbeatExpiration time.Time         `json:"heartbeat_expiration,omitempty"`
	Nonces              map[string]int64  `json:"nonces,omitempty"`
	Settings            map[string]string `json:"settings,omitempty"`
}

// Reset drops the whole state, keeping only an empty value behind.
func (s *SessionState) Reset() {
	*s = SessionState{}
}
