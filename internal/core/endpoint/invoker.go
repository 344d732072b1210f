package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// Call is one inbound API request: admin/api/<package>/<signal>.
type Call struct {
	Package    string
	Signal     string
	HTTPMethod string
	Query      url.Values
	Form       url.Values

	Request Request
}

// Invoker resolves endpoint classes, binds parameters and runs actions.
type Invoker struct {
	types   map[string]struct{}
	locator Locator
	log     zerolog.Logger
}

func NewInvoker(locator Locator, log zerolog.Logger) *Invoker {
	return &Invoker{types: make(map[string]struct{}), locator: locator, log: log}
}

// Register declares endpoint class names the invoker may dispatch to.
func (i *Invoker) Register(classNames ...string) {
	for _, name := range classNames {
		i.types[name] = struct{}{}
	}
}

// Process runs the action addressed by call. It returns (nil, nil) when the
// endpoint exists but does not implement the signal. A redirect requested by
// the action comes back in Result.Outcome, never as an error.
func (i *Invoker) Process(ctx context.Context, call Call) (*Result, error) {
	if call.Signal == "" {
		call.Signal = "default"
	}
	form := unwrapJSONBody(call.Form)

	className := ClassName(call.Package)
	if _, ok := i.types[className]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, className)
	}

	ep, err := i.locator.Resolve(className)
	if err != nil {
		return nil, err
	}

	action, ok := findAction(ep, call.HTTPMethod, call.Signal)
	if !ok {
		i.log.Debug().Str("endpoint", className).Str("signal", call.Signal).Msg("signal not implemented")
		return nil, nil
	}

	args, err := bind(action, mergeValues(call.Query, form))
	if err != nil {
		return nil, err
	}

	req := call.Request
	req.Args = args
	result, err := action.Handler(ctx, &req)
	if err != nil {
		return nil, &domain.EndpointError{Package: call.Package, Signal: call.Signal, Err: err}
	}
	if result == nil {
		result = Data(nil)
	}
	return result, nil
}

// ClassName maps "user" to "UserEndpoint" and "user-settings" to "UserSettingsEndpoint".
func ClassName(packageName string) string {
	return camelize(packageName) + "Endpoint"
}

// MethodName maps signal "set-password" to "actionSetPassword". Dots are dropped.
func MethodName(prefix, signal string) string {
	return prefix + camelize(strings.ReplaceAll(signal, ".", ""))
}

func camelize(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func findAction(ep Endpoint, httpMethod, signal string) (Action, bool) {
	candidates := []string{MethodName("action", signal)}
	if httpMethod == http.MethodPost {
		candidates = append([]string{MethodName("post", signal)}, candidates...)
	}

	actions := ep.Actions()
	for _, name := range candidates {
		for _, a := range actions {
			if a.Method == name {
				return a, true
			}
		}
	}
	return Action{}, false
}

func bind(action Action, values url.Values) (Args, error) {
	args := make(Args, len(action.Params))
	for _, p := range action.Params {
		if raw, ok := values[p.Name]; ok {
			args[p.Name] = p.coerce(raw)
			continue
		}
		if p.HasDefault {
			args[p.Name] = p.Default
			continue
		}
		if p.Nullable {
			args[p.Name] = nil
			continue
		}
		return nil, &domain.MissingParameterError{Parameter: p.Name, Method: action.Method}
	}
	return args, nil
}

// mergeValues overlays post on query; POST wins on conflicts.
func mergeValues(query, post url.Values) url.Values {
	merged := make(url.Values, len(query)+len(post))
	for k, v := range query {
		merged[k] = v
	}
	for k, v := range post {
		merged[k] = v
	}
	return merged
}

// unwrapJSONBody handles clients posting a raw JSON object instead of form
// data, which arrives as a single form key holding the whole document.
func unwrapJSONBody(form url.Values) url.Values {
	if len(form) != 1 {
		return form
	}
	var key string
	for k := range form {
		key = k
	}
	if !strings.HasPrefix(strings.TrimSpace(key), "{") {
		return form
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(key), &doc); err != nil {
		return form
	}

	out := make(url.Values, len(doc))
	for k, v := range doc {
		out[k] = flatten(v)
	}
	return out
}

func flatten(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{t}
	case bool:
		return []string{strconv.FormatBool(t)}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	default:
		encoded, _ := json.Marshal(t)
		return []string{string(encoded)}
	}
}
