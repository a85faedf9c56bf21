package fcm

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is; use errors.As with *Error to reach
// the provider response.
var (
	// ErrConfig is returned by NewDispatcher for missing or invalid settings.
	ErrConfig = errors.New("fcm: invalid configuration")
	// ErrValidation is returned when a message lacks the target a send needs.
	ErrValidation = errors.New("fcm: invalid message")
	// ErrAuth covers credential loading and access token refresh failures.
	ErrAuth = errors.New("fcm: authentication failed")
	// ErrDispatch is a provider or transport failure on a single-target call.
	ErrDispatch = errors.New("fcm: dispatch failed")
	// ErrPartialFailure is raised by the legacy device send when the provider
	// reports a non-zero failure count.
	ErrPartialFailure = errors.New("fcm: some messages failed to send")
)

// Error is the concrete error returned by every operation in this package.
type Error struct {
	Kind     error
	Op       string
	Message  string
	Response Response
	// Result is set on ErrPartialFailure with the per-token outcomes the
	// provider reported.
	Result *Result
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// wrapTransport maps an http.Client error onto the taxonomy. Failures raised by
// the bearer transport keep their auth kind.
func wrapTransport(op, msg string, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) && errors.Is(fe.Kind, ErrAuth) {
		return &Error{Kind: ErrAuth, Op: op, Message: msg, Err: err}
	}
	return &Error{
		Kind:     ErrDispatch,
		Op:       op,
		Message:  msg,
		Response: Response{"error": err.Error()},
		Err:      err,
	}
}
