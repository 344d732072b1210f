package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

type recordingEndpoint struct {
	got    Args
	calls  int
	err    error
	result *Result
}

func (e *recordingEndpoint) Actions() []Action {
	record := func(_ context.Context, req *Request) (*Result, error) {
		e.calls++
		e.got = req.Args
		if e.err != nil {
			return nil, e.err
		}
		return e.result, nil
	}
	return []Action{
		{
			Method:  "actionSetPassword",
			Params:  []Param{StringParam("id"), StringParam("password")},
			Handler: record,
		},
		{
			Method: "actionTypes",
			Params: []Param{
				NullableString("note"),
				IntParam("count"),
				FloatParam("ratio"),
				BoolParam("flag"),
				RawParam("raw"),
				StringParam("locale").Optional("en"),
			},
			Handler: record,
		},
		{Method: "postSave", Handler: record},
		{Method: "actionSave", Handler: record},
		{Method: "actionDefault", Handler: record},
	}
}

func newTestInvoker(ep Endpoint) *Invoker {
	c := NewContainer()
	c.Provide("UserEndpoint", func() (Endpoint, error) { return ep, nil })
	inv := NewInvoker(c, zerolog.Nop())
	inv.Register(c.Names()...)
	return inv
}

func process(t *testing.T, inv *Invoker, signal string, query url.Values) (*Result, error) {
	t.Helper()
	return inv.Process(context.Background(), Call{
		Package:    "user",
		Signal:     signal,
		HTTPMethod: http.MethodGet,
		Query:      query,
	})
}

func TestInvoker_MissingRequiredParameter(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	_, err := process(t, inv, "set-password", url.Values{"id": {"42"}})

	var mpe *domain.MissingParameterError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if mpe.Parameter != "password" || mpe.Method != "actionSetPassword" {
		t.Fatalf("unexpected error detail: %+v", mpe)
	}
	if ep.calls != 0 {
		t.Fatalf("action must not run when binding fails")
	}
}

func TestInvoker_CoercionRules(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	_, err := process(t, inv, "types", url.Values{
		"note":  {""},
		"count": {"12abc"},
		"ratio": {"2.5"},
		"flag":  {"YES"},
		"raw":   {"a", "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, present := ep.got["note"]; !present || v != nil {
		t.Errorf("expected nil for empty nullable string, got %#v", v)
	}
	if ep.got.Int("count") != 12 {
		t.Errorf("expected 12, got %v", ep.got["count"])
	}
	if ep.got.Float("ratio") != 2.5 {
		t.Errorf("expected 2.5, got %v", ep.got["ratio"])
	}
	if !ep.got.Bool("flag") {
		t.Errorf("expected YES to be true")
	}
	if raw, ok := ep.got.Raw("raw").([]string); !ok || len(raw) != 2 {
		t.Errorf("expected raw multi value, got %#v", ep.got["raw"])
	}
	if ep.got.String("locale") != "en" {
		t.Errorf("expected default locale, got %v", ep.got["locale"])
	}
}

func TestInvoker_NullableEmptyEqualsOmitted(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	omitted := url.Values{"count": {"1"}, "ratio": {"1"}, "flag": {"no"}, "raw": {"x"}}
	if _, err := process(t, inv, "types", omitted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, present := ep.got["note"]; !present || v != nil {
		t.Fatalf("expected omitted nullable string bound to nil, got %#v", v)
	}

	withEmpty := url.Values{"note": {""}, "count": {"1"}, "ratio": {"1"}, "flag": {"no"}, "raw": {"x"}}
	if _, err := process(t, inv, "types", withEmpty); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.got.StringPtr("note") != nil {
		t.Fatalf("expected nil pointer for empty nullable string")
	}
}

func TestInvoker_BoolVocabulary(t *testing.T) {
	cases := map[string]bool{
		"true": true, "TRUE": true, "yes": true, "Yes": true, "ok": true, "OK": true,
		"1": false, "on": false, "false": false, "": false, "y": false,
	}
	for raw, want := range cases {
		p := BoolParam("flag")
		if got := p.coerce([]string{raw}); got != want {
			t.Errorf("coerce(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestInvoker_UnwrapsJSONBody(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	_, err := inv.Process(context.Background(), Call{
		Package:    "user",
		Signal:     "set-password",
		HTTPMethod: http.MethodPost,
		Form:       url.Values{`{"id":"7","password":"hunter22"}`: {""}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.got.String("id") != "7" || ep.got.String("password") != "hunter22" {
		t.Fatalf("unexpected args: %#v", ep.got)
	}
}

func TestInvoker_PostPrefersPostMethod(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	if _, err := inv.Process(context.Background(), Call{Package: "user", Signal: "save", HTTPMethod: http.MethodPost}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.calls != 1 {
		t.Fatalf("expected one call, got %d", ep.calls)
	}
}

func TestInvoker_DefaultSignal(t *testing.T) {
	ep := &recordingEndpoint{}
	inv := newTestInvoker(ep)

	if _, err := process(t, inv, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.calls != 1 {
		t.Fatalf("expected actionDefault to run")
	}
}

func TestInvoker_UnknownSignalIsNoResult(t *testing.T) {
	inv := newTestInvoker(&recordingEndpoint{})

	res, err := process(t, inv, "does.not-exist", nil)
	if err != nil || res != nil {
		t.Fatalf("expected no result and no error, got %v %v", res, err)
	}
}

func TestInvoker_EndpointNotFound(t *testing.T) {
	inv := newTestInvoker(&recordingEndpoint{})

	_, err := inv.Process(context.Background(), Call{Package: "billing", Signal: "default"})
	if !errors.Is(err, domain.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestInvoker_ServiceNotFound(t *testing.T) {
	c := NewContainer()
	c.Provide("UserEndpoint", func() (Endpoint, error) { return nil, errors.New("boom") })
	inv := NewInvoker(c, zerolog.Nop())
	inv.Register("UserEndpoint", "AuditEndpoint")

	if _, err := inv.Process(context.Background(), Call{Package: "user"}); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound from failing factory, got %v", err)
	}
	if _, err := inv.Process(context.Background(), Call{Package: "audit"}); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound for registered type without factory, got %v", err)
	}
}

func TestInvoker_RedirectPassesThrough(t *testing.T) {
	ep := &recordingEndpoint{result: Redirect(domain.RedirectRoute("users", map[string]string{"id": "1"}))}
	inv := newTestInvoker(ep)

	res, err := process(t, inv, "set-password", url.Values{"id": {"1"}, "password": {"x"}})
	if err != nil {
		t.Fatalf("redirect must not be an error: %v", err)
	}
	if res.Outcome.Kind != domain.OutcomeRedirect || res.Outcome.Redirect.Destination != "users" {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
}

func TestInvoker_WrapsActionErrors(t *testing.T) {
	cause := errors.New("disk full")
	ep := &recordingEndpoint{err: cause}
	inv := newTestInvoker(ep)

	_, err := process(t, inv, "set-password", url.Values{"id": {"1"}, "password": {"x"}})

	var epErr *domain.EndpointError
	if !errors.As(err, &epErr) {
		t.Fatalf("expected EndpointError, got %v", err)
	}
	if !errors.Is(err, cause) || epErr.Package != "user" || epErr.Signal != "set-password" {
		t.Fatalf("unexpected wrapping: %+v", epErr)
	}
}

func TestNames(t *testing.T) {
	if got := ClassName("user-settings"); got != "UserSettingsEndpoint" {
		t.Errorf("ClassName = %s", got)
	}
	if got := MethodName("action", "set-password"); got != "actionSetPassword" {
		t.Errorf("MethodName = %s", got)
	}
	if got := MethodName("action", "otp.code"); got != "actionOtpcode" {
		t.Errorf("MethodName with dots = %s", got)
	}
}
