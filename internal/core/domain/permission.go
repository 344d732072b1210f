package domain

// Privilege is a fine grained permission scoped to a resource.
type Privilege struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ResourcePermission lists which roles may reach a resource and the
// privileges those roles are granted on it.
type ResourcePermission struct {
	Resource   string      `json:"resource"`
	Roles      []string    `json:"roles"`
	Privileges []Privilege `json:"privileges"`
}

func (r ResourcePermission) HasRole(role string) bool {
	for _, candidate := range r.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func (r ResourcePermission) HasPrivilege(name string) bool {
	for _, p := range r.Privileges {
		if p.Name == name {
			return true
		}
	}
	return false
}
