package survey

import (
	"errors"
	"fmt"
)

// Code classifies a recoverable extraction or lifecycle failure. Every
// code maps to a correction the conversational layer can ask the user for,
// except the session/user lifecycle codes which end the attempt.
type Code string

const (
	CodeMissingRequiredField Code = "missing_required_field"
	CodeOutOfRangeField      Code = "out_of_range_field"
	CodeInvalidWindowCount   Code = "invalid_window_count"
	CodeOverlappingWindows   Code = "overlapping_windows"
	CodeSessionClosed        Code = "session_closed"
	CodeInvalidUserState     Code = "invalid_user_state"
)

// Diagnostic is a structured, recoverable-by-conversation failure. It is
// returned to the caller so the next turn can prompt the user for a
// correction; it never leaves partial state committed.
type Diagnostic struct {
	Code   Code
	Field  string // the offending field, when one exists
	Reason string
}

func (d *Diagnostic) Error() string {
	if d.Field != "" {
		return fmt.Sprintf("%s: %s: %s", d.Code, d.Field, d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Reason)
}

// Prompt renders the diagnostic as a clarification request for the user.
func (d *Diagnostic) Prompt() string {
	switch d.Code {
	case CodeMissingRequiredField:
		return fmt.Sprintf("I still need the %s for this appliance — could you tell me?", d.Field)
	case CodeOutOfRangeField:
		return fmt.Sprintf("The %s you gave doesn't look right (%s). What should it be?", d.Field, d.Reason)
	case CodeInvalidWindowCount:
		return "I need at least one usage time window for this appliance — roughly when is it used?"
	case CodeOverlappingWindows:
		return fmt.Sprintf("Those usage windows overlap (%s). Could you give me non-overlapping times?", d.Reason)
	default:
		return d.Reason
	}
}

func MissingRequiredField(field string) *Diagnostic {
	return &Diagnostic{Code: CodeMissingRequiredField, Field: field, Reason: "field is required and no default is available"}
}

func OutOfRangeField(field, reason string) *Diagnostic {
	return &Diagnostic{Code: CodeOutOfRangeField, Field: field, Reason: reason}
}

func InvalidWindowCount(n int) *Diagnostic {
	return &Diagnostic{Code: CodeInvalidWindowCount, Reason: fmt.Sprintf("got %d populated windows, need 1-3", n)}
}

func OverlappingWindows(a, b TimeWindow) *Diagnostic {
	return &Diagnostic{Code: CodeOverlappingWindows, Reason: fmt.Sprintf("%s conflicts with %s", a, b)}
}

func SessionClosed(status SessionStatus) *Diagnostic {
	return &Diagnostic{Code: CodeSessionClosed, Reason: fmt.Sprintf("session is %s", status)}
}

func InvalidUserState(reason string) *Diagnostic {
	return &Diagnostic{Code: CodeInvalidUserState, Reason: reason}
}

// AsDiagnostic unwraps a Diagnostic from an error chain.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
