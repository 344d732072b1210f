package domain

import "time"

const (
	RoleAdmin = "admin"
)

// Identity models an authenticated operator of the administration.
type Identity struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email,omitempty"`
	PasswordHash string            `json:"-"`
	Roles        []string          `json:"roles"`
	Privileges   []string          `json:"privileges,omitempty"`
	OtpSecret    []byte            `json:"-"`
	Active       bool              `json:"active"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastActivity time.Time         `json:"last_activity,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HasRole reports whether the identity carries the given role.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPrivilege reports whether the identity carries a direct privilege flag.
func (i *Identity) HasPrivilege(privilege string) bool {
	for _, p := range i.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}

// IsAdmin reports whether every privilege check must succeed for this identity.
func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// OtpEnabled reports whether two-factor login is required.
func (i *Identity) OtpEnabled() bool {
	return len(i.OtpSecret) > 0
}
