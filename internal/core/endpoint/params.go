package endpoint

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the declared type of an action parameter.
type Kind int

const (
	Untyped Kind = iota
	String
	Int
	Float
	Bool
)

// Param describes one formal parameter of an action, in declaration order.
type Param struct {
	Name       string
	Kind       Kind
	Nullable   bool
	Default    any
	HasDefault bool
}

func StringParam(name string) Param { return Param{Name: name, Kind: String} }

// NullableString binds an empty string as nil.
func NullableString(name string) Param { return Param{Name: name, Kind: String, Nullable: true} }

func IntParam(name string) Param { return Param{Name: name, Kind: Int} }

func FloatParam(name string) Param { return Param{Name: name, Kind: Float} }

func BoolParam(name string) Param { return Param{Name: name, Kind: Bool} }

// RawParam passes the request value through untouched.
func RawParam(name string) Param { return Param{Name: name, Kind: Untyped} }

// Optional returns a copy of p that falls back to def when the request does
// not carry the parameter.
func (p Param) Optional(def any) Param {
	p.Default = def
	p.HasDefault = true
	return p
}

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	truthy       = map[string]struct{}{"true": {}, "yes": {}, "ok": {}}
)

// coerce converts raw request values according to p.Kind. Numeric casts are
// lenient: the longest numeric prefix is used and anything else yields zero.
func (p Param) coerce(values []string) any {
	if p.Kind == Untyped {
		if len(values) == 1 {
			return values[0]
		}
		return values
	}

	raw := ""
	if len(values) > 0 {
		raw = values[0]
	}

	switch p.Kind {
	case String:
		if p.Nullable && raw == "" {
			return nil
		}
		return raw
	case Int:
		n, _ := strconv.Atoi(leadingInt.FindString(strings.TrimSpace(raw)))
		return n
	case Float:
		f, _ := strconv.ParseFloat(leadingFloat.FindString(strings.TrimSpace(raw)), 64)
		return f
	case Bool:
		_, ok := truthy[strings.ToLower(raw)]
		return ok
	}
	return raw
}

// Args holds the bound arguments of one call, keyed by parameter name.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// StringPtr returns nil for an absent or null argument.
func (a Args) StringPtr(name string) *string {
	s, ok := a[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Raw(name string) any { return a[name] }
