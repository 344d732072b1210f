package handler

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// AssetHandler serves the administration front-end files from a directory.
type AssetHandler struct {
	root string
}

func NewAssetHandler(root string) *AssetHandler {
	return &AssetHandler{root: root}
}

// Serve answers the file named by the wildcard of the route. Paths leaving
// the asset directory are not found.
func (h *AssetHandler) Serve(c echo.Context) error {
	name := path.Clean("/" + c.Param("*"))
	if name == "/" || strings.Contains(name, "\x00") {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}

	file := filepath.Join(h.root, filepath.FromSlash(name))
	if err := c.File(file); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	return nil
}
