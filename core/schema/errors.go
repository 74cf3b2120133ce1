package schema

import (
	"errors"
	"fmt"
)

// Code identifies the class of a request error.
// Codes are the names used by EC2-style query APIs in error responses.
type Code string

const (
	CodeMissingParameter            Code = "MissingParameter"
	CodeInvalidParameterValue       Code = "InvalidParameterValue"
	CodeInvalidParameterCombination Code = "InvalidParameterCombination"
	CodeUnknownParameter            Code = "UnknownParameter"
)

// Error is a request error raised while extracting parameters.
// It is always caused by bad input and is safe to report to the caller.
type Error struct {
	// Code is the machine-readable error class.
	Code Code `json:"code"`

	// Parameter is the wire path the error relates to, if known.
	Parameter string `json:"parameter,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code, so the
// sentinel values below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching on request errors.
var (
	ErrMissingParameter            = &Error{Code: CodeMissingParameter}
	ErrInvalidParameterValue       = &Error{Code: CodeInvalidParameterValue}
	ErrInvalidParameterCombination = &Error{Code: CodeInvalidParameterCombination}
	ErrUnknownParameter            = &Error{Code: CodeUnknownParameter}
)

// ErrSchema marks programmer faults: a schema that is inconsistent, or a
// bundle call that passes keys or values the schema cannot format.
// These are never request errors.
var ErrSchema = errors.New("schema fault")

// MissingParameter reports that the required parameter name is absent.
func MissingParameter(name string) *Error {
	return &Error{
		Code:      CodeMissingParameter,
		Parameter: name,
		Message:   fmt.Sprintf("The request must contain the parameter %s", name),
	}
}

func invalidParameterValue(name, message string) *Error {
	return &Error{
		Code:      CodeInvalidParameterValue,
		Parameter: name,
		Message:   message,
	}
}

func invalidParameterCombination(name string) *Error {
	return &Error{
		Code:      CodeInvalidParameterCombination,
		Parameter: name,
		Message:   fmt.Sprintf("The parameter '%s' may only be specified once.", name),
	}
}

// UnknownParameter reports that name matches no declared parameter.
func UnknownParameter(name string) *Error {
	return &Error{
		Code:      CodeUnknownParameter,
		Parameter: name,
		Message:   fmt.Sprintf("The parameter %s is not recognized", name),
	}
}

// UnknownParameters reports every key of leftovers as UnknownParameter,
// in key order. It returns nil when leftovers is empty.
func UnknownParameters(leftovers map[string]string) error {
	errs := make([]error, 0, len(leftovers))
	for _, key := range sortedKeys(leftovers) {
		errs = append(errs, UnknownParameter(key))
	}
	return errors.Join(errs...)
}

func schemaFault(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

// AsError returns the first request error found in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Errors returns every request error in err, descending into errors
// joined with errors.Join.
func Errors(err error) []*Error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*Error
		for _, e := range joined.Unwrap() {
			out = append(out, Errors(e)...)
		}
		return out
	}
	if e, ok := AsError(err); ok {
		return []*Error{e}
	}
	return nil
}
