package domain

import "time"

const (
	AuditSignIn           = "sign_in"
	AuditSignInFailed     = "sign_in_failed"
	AuditOtpFailed        = "otp_failed"
	AuditPermissionDenied = "permission_denied"
	AuditForcedLogout     = "forced_logout"
	AuditPasswordChanged  = "password_changed"
	AuditOtpChanged       = "otp_changed"
	AuditIdentityCreated  = "identity_created"
)

// AuditEvent records a security relevant action in the administration.
type AuditEvent struct {
	IdentityID string    `json:"identity_id,omitempty" bson:"identity_id,omitempty"`
	Action     string    `json:"action" bson:"action"`
	Subject    string    `json:"subject,omitempty" bson:"subject,omitempty"`
	RemoteIP   string    `json:"remote_ip,omitempty" bson:"remote_ip,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
