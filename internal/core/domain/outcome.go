package domain

// OutcomeKind tells the dispatcher how to continue after a plugin or endpoint
// hook has run.
type OutcomeKind int

const (
	OutcomeContinue OutcomeKind = iota
	OutcomeRedirect
	OutcomeTerminate
	OutcomeUserError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeTerminate:
		return "terminate"
	case OutcomeUserError:
		return "user_error"
	default:
		return "continue"
	}
}

// RedirectTarget is either an absolute URL or a route name with arguments.
type RedirectTarget struct {
	URL         string            `json:"url,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Args        map[string]string `json:"args,omitempty"`
}

// Outcome is the result of a plugin lifecycle hook or endpoint action.
type Outcome struct {
	Kind     OutcomeKind
	Redirect RedirectTarget
	Message  string
}

func Continue() Outcome { return Outcome{Kind: OutcomeContinue} }

func Terminate() Outcome { return Outcome{Kind: OutcomeTerminate} }

func RedirectURL(url string) Outcome {
	return Outcome{Kind: OutcomeRedirect, Redirect: RedirectTarget{URL: url}}
}

// RedirectRoute redirects to a named route, e.g. "users:detail" with {"id": "42"}.
func RedirectRoute(destination string, args map[string]string) Outcome {
	return Outcome{Kind: OutcomeRedirect, Redirect: RedirectTarget{Destination: destination, Args: args}}
}

func UserError(message string) Outcome {
	return Outcome{Kind: OutcomeUserError, Message: message}
}

func (o Outcome) IsContinue() bool { return o.Kind == OutcomeContinue }
