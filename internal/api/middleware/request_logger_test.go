package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/pkg/logger"
)

func TestRequestLogger_TagsRequestID(t *testing.T) {
	logger.Reset()
	defer logger.Reset()
	var buf bytes.Buffer
	logger.Init(logger.Options{Level: "info", Output: &buf})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequestLogger()(func(c echo.Context) error {
		log := logger.Ctx(c.Request().Context(), zerolog.Nop())
		log.Info().Msg("inside")
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "abc" {
		t.Fatalf("expected request_id abc, got %v", entry)
	}
}
