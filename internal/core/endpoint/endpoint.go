// Package endpoint binds HTTP form data to endpoint actions without runtime
// reflection. Every endpoint type declares its actions and their parameters
// in a table built once at startup.
package endpoint

import (
	"context"
	"fmt"
	"sort"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/session"
)

// Access answers permission queries for the caller of an action.
type Access interface {
	IsAllowedPlugin(plugin string) bool
	IsAllowedComponent(plugin, component string) bool
}

// Request is what an action receives besides its bound arguments.
type Request struct {
	Args     Args
	Session  *session.Session
	Access   Access
	RemoteIP string
}

// Result is the outcome of an action. Data is rendered as the JSON response
// unless Outcome asks for a redirect.
type Result struct {
	Data    map[string]any
	Outcome domain.Outcome
}

func Data(data map[string]any) *Result {
	return &Result{Data: data, Outcome: domain.Continue()}
}

func Redirect(outcome domain.Outcome) *Result {
	return &Result{Outcome: outcome}
}

type Handler func(ctx context.Context, req *Request) (*Result, error)

// Action is one callable method, e.g. "actionSetPassword".
type Action struct {
	Method  string
	Params  []Param
	Handler Handler
}

// Endpoint exposes its action table.
type Endpoint interface {
	Actions() []Action
}

// Locator produces endpoint instances by class name.
type Locator interface {
	Resolve(className string) (Endpoint, error)
}

type Factory func() (Endpoint, error)

// Container is a Locator backed by factories registered at startup.
type Container struct {
	factories map[string]Factory
}

func NewContainer() *Container {
	return &Container{factories: make(map[string]Factory)}
}

func (c *Container) Provide(className string, factory Factory) {
	c.factories[className] = factory
}

// Names lists every class name the container can produce.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Container) Resolve(className string) (Endpoint, error) {
	factory, ok := c.factories[className]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, className)
	}
	ep, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrServiceNotFound, className, err)
	}
	return ep, nil
}
