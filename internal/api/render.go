package api

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// Page is the document handed to the front-end for every dispatched request.
type Page struct {
	Plugin   string                    `json:"plugin"`
	View     string                    `json:"view"`
	Title    string                    `json:"title,omitempty"`
	Locale   string                    `json:"locale"`
	Project  string                    `json:"project,omitempty"`
	Nonce    string                    `json:"nonce,omitempty"`
	Identity *domain.Identity          `json:"identity,omitempty"`
	Menu     []domain.PluginDescriptor `json:"menu,omitempty"`
	Data     map[string]any            `json:"data,omitempty"`
}

type Renderer interface {
	Render(c echo.Context, status int, page *Page) error
}

// JSONRenderer writes the page as JSON, indented unless Minify is set.
type JSONRenderer struct {
	Minify bool
}

func (r JSONRenderer) Render(c echo.Context, status int, page *Page) error {
	if r.Minify {
		return c.JSON(status, page)
	}
	return c.JSONPretty(status, page, "  ")
}
