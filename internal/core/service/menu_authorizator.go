package service

import (
	"strings"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// MenuAuthorizator evaluates plugin and component access for one identity.
// It is built once per request so the identity is looked up only once.
type MenuAuthorizator struct {
	authz    *Authorizator
	identity *domain.Identity
}

func NewMenuAuthorizator(authz *Authorizator, identity *domain.Identity) *MenuAuthorizator {
	return &MenuAuthorizator{authz: authz, identity: identity}
}

func (m *MenuAuthorizator) Identity() *domain.Identity { return m.identity }

// IsAllowedPlugin reports whether the identity may open plugin at all.
func (m *MenuAuthorizator) IsAllowedPlugin(plugin string) bool {
	if m.identity == nil {
		return false
	}
	if m.identity.IsAdmin() || IsAlwaysAllowed(plugin) {
		return true
	}
	for _, role := range m.identity.Roles {
		if m.authz.IsAllowed(role, plugin, "") {
			return true
		}
	}
	prefix := plugin + "_"
	for _, p := range m.identity.Privileges {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// IsAllowedComponent reports whether the identity may use component (a view
// or privilege) of plugin.
func (m *MenuAuthorizator) IsAllowedComponent(plugin, component string) bool {
	if m.identity != nil && IsAlwaysAllowed(plugin) {
		return true
	}
	if !m.IsAllowedPlugin(plugin) {
		return false
	}
	if m.identity.IsAdmin() {
		return true
	}

	privilege := NormalizePrivilege(component)
	for _, role := range m.identity.Roles {
		if m.authz.IsAllowed(role, plugin, privilege) {
			return true
		}
	}
	return m.identity.HasPrivilege(plugin + "_" + privilege)
}
