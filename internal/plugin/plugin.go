// Package plugin defines the administration pages reachable at
// <prefix>/<plugin>/<view> and the registry the dispatcher resolves them from.
package plugin

import (
	"context"
	"net/url"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/endpoint"
	"github.com/99minutos/admin-backend/internal/core/session"
)

// Access answers permission queries for the identity of the current request.
type Access interface {
	IsAllowedPlugin(plugin string) bool
	IsAllowedComponent(plugin, component string) bool
}

// Page is filled by the plugin hooks and handed to the renderer.
type Page struct {
	Title string
	Data  map[string]any
}

// Set stores a value rendered with the page.
func (p *Page) Set(key string, value any) {
	if p.Data == nil {
		p.Data = make(map[string]any)
	}
	p.Data[key] = value
}

// Context is the request scoped state shared by the hooks of one plugin run.
type Context struct {
	Plugin  string
	View    string
	Locale  string
	Method  string
	Query   url.Values
	Session *session.Session
	Access  Access
	Page    *Page

	// NonceVerified is set when the request carried a form nonce that was
	// accepted.
	NonceVerified bool
}

// Identity returns the authenticated identity, or nil.
func (c *Context) Identity() *domain.Identity {
	if c.Session == nil {
		return nil
	}
	return c.Session.Identity
}

// View renders one view of a plugin. It is registered as "action<View>".
type View func(ctx context.Context, pc *Context) (domain.Outcome, error)

// Plugin is one administration page group. Hooks run in the order
// BeforeRender, Run, view, AfterRender; any outcome other than Continue
// stops the sequence.
type Plugin interface {
	Descriptor() domain.PluginDescriptor
	BeforeRender(ctx context.Context, pc *Context) (domain.Outcome, error)
	Run(ctx context.Context, pc *Context) (domain.Outcome, error)
	AfterRender(ctx context.Context, pc *Context) (domain.Outcome, error)
	Views() map[string]View
}

// Base implements every hook as a no-op. Plugins embed it and override what
// they need.
type Base struct {
	Desc domain.PluginDescriptor
}

func (b Base) Descriptor() domain.PluginDescriptor { return b.Desc }

func (Base) BeforeRender(context.Context, *Context) (domain.Outcome, error) {
	return domain.Continue(), nil
}

func (Base) Run(context.Context, *Context) (domain.Outcome, error) {
	return domain.Continue(), nil
}

func (Base) AfterRender(context.Context, *Context) (domain.Outcome, error) {
	return domain.Continue(), nil
}

func (Base) Views() map[string]View { return nil }

// ViewMethod maps view "detail" to "actionDetail".
func ViewMethod(view string) string {
	if view == "" {
		view = "default"
	}
	return endpoint.MethodName("action", view)
}

// Lifecycle runs the hooks of p and returns the first outcome that is not
// Continue. A view without a registered method is not an error.
func Lifecycle(ctx context.Context, p Plugin, pc *Context) (domain.Outcome, error) {
	steps := []func(context.Context, *Context) (domain.Outcome, error){p.BeforeRender, p.Run}
	if view, ok := p.Views()[ViewMethod(pc.View)]; ok {
		steps = append(steps, view)
	}
	steps = append(steps, p.AfterRender)

	for _, step := range steps {
		outcome, err := step(ctx, pc)
		if err != nil {
			return domain.Outcome{}, err
		}
		if !outcome.IsContinue() {
			return outcome, nil
		}
	}
	return domain.Continue(), nil
}
