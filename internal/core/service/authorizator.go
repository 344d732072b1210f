package service

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

const (
	privilegeList    = "list"
	privilegeDefault = "default"
	privilegeDetail  = "detail"
)

// alwaysAllowed resources are reachable by every authenticated identity.
var alwaysAllowed = map[string]struct{}{
	"homepage": {},
	"cms":      {},
	"error":    {},
}

// IsAlwaysAllowed reports whether resource bypasses the permission map.
func IsAlwaysAllowed(resource string) bool {
	_, ok := alwaysAllowed[resource]
	return ok
}

// Authorizator answers role/resource/privilege queries against the static
// resource map compiled at startup.
type Authorizator struct {
	resources map[string]domain.ResourcePermission
}

func NewAuthorizator(resources []domain.ResourcePermission) *Authorizator {
	m := make(map[string]domain.ResourcePermission, len(resources))
	for _, r := range resources {
		m[r.Resource] = r
	}
	return &Authorizator{resources: m}
}

// IsAllowed grants admin everything, grants always-allowed resources to any
// role, and otherwise requires the role to be listed for the resource. When
// privilege is not empty the resource must also declare it after alias
// normalization.
func (a *Authorizator) IsAllowed(role, resource, privilege string) bool {
	if role == domain.RoleAdmin || IsAlwaysAllowed(resource) {
		return true
	}
	perm, ok := a.resources[resource]
	if !ok || !perm.HasRole(role) {
		return false
	}
	if privilege == "" {
		return true
	}
	return perm.HasPrivilege(NormalizePrivilege(privilege))
}

func (a *Authorizator) Resource(name string) (domain.ResourcePermission, bool) {
	r, ok := a.resources[name]
	return r, ok
}

// Resources returns the compiled map sorted by resource name.
func (a *Authorizator) Resources() []domain.ResourcePermission {
	out := make([]domain.ResourcePermission, 0, len(a.resources))
	for _, r := range a.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// NormalizePrivilege maps the view aliases default and detail to list and
// rewrites camelCase names to kebab-case.
func NormalizePrivilege(privilege string) string {
	switch privilege {
	case privilegeDefault, privilegeDetail:
		return privilegeList
	}
	return ToKebab(privilege)
}

// ToKebab converts "setPassword" to "set-password".
func ToKebab(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Resource map compilation ---

// ResourceConfig is one entry of the permission file.
type ResourceConfig struct {
	Roles      RoleList        `yaml:"roles"`
	Privileges []PrivilegeSpec `yaml:"privileges"`
}

// RoleList accepts "editor", "editor, manager" or [editor, manager].
type RoleList []string

func (r *RoleList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	if value.Kind == yaml.ScalarNode {
		raw = []string{value.Value}
	} else if err := value.Decode(&raw); err != nil {
		return err
	}

	var roles []string
	for _, item := range raw {
		roles = append(roles, strings.Split(item, ",")...)
	}
	*r = roles
	return nil
}

// PrivilegeSpec accepts either "list" or {name: list, description: ...}.
type PrivilegeSpec struct {
	Name        string `yaml:"name" validate:"required,lowercase"`
	Description string `yaml:"description"`
}

func (p *PrivilegeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		return nil
	}
	type rawPrivilege PrivilegeSpec
	var raw rawPrivilege
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = PrivilegeSpec(raw)
	return nil
}

// LoadResourceMap reads and compiles the permission file at path.
func LoadResourceMap(path string) ([]domain.ResourcePermission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission file: %w", err)
	}
	return ParseResourceMap(data)
}

// ParseResourceMap compiles a YAML document keyed by resource name.
func ParseResourceMap(data []byte) ([]domain.ResourcePermission, error) {
	var doc map[string]ResourceConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse permission file: %w", err)
	}
	return CompileResourceMap(doc)
}

// CompileResourceMap validates every entry and returns resources sorted by name.
func CompileResourceMap(doc map[string]ResourceConfig) ([]domain.ResourcePermission, error) {
	v := validator.New()

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.ResourcePermission, 0, len(doc))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty resource name", domain.ErrInvalidPermission)
		}
		cfg := doc[name]

		perm := domain.ResourcePermission{Resource: name, Roles: dedupeRoles(cfg.Roles)}
		seen := make(map[string]struct{}, len(cfg.Privileges))
		for _, spec := range cfg.Privileges {
			if err := validatePrivilege(v, name, spec); err != nil {
				return nil, err
			}
			if _, dup := seen[spec.Name]; dup {
				continue
			}
			seen[spec.Name] = struct{}{}
			perm.Privileges = append(perm.Privileges, domain.Privilege{Name: spec.Name, Description: spec.Description})
		}
		out = append(out, perm)
	}
	return out, nil
}

func validatePrivilege(v *validator.Validate, resource string, spec PrivilegeSpec) error {
	err := v.Struct(spec)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		switch ve[0].Tag() {
		case "required":
			return fmt.Errorf("%w: resource %q has a privilege without name", domain.ErrInvalidPermission, resource)
		case "lowercase":
			return fmt.Errorf("%w: privilege %q of resource %q must be kebab-case, did you mean %q?",
				domain.ErrInvalidPermission, spec.Name, resource, ToKebab(spec.Name))
		}
	}
	return fmt.Errorf("%w: resource %q: %v", domain.ErrInvalidPermission, resource, err)
}

func dedupeRoles(values []string) []string {
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
