// Package errors provides the error taxonomy for report ingestion.
//
// Every failure carries a Kind so callers at the I/O boundary (CLI, HTTP API)
// can turn it into the right message or status code without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindUnsupportedFormat
	KindMalformedReport
	KindTooLarge
	KindInternal
)

var kinds = [...]struct {
	code   string
	status int
}{
	KindUnknown:           {"unknown", http.StatusInternalServerError},
	KindInvalidInput:      {"invalid_input", http.StatusBadRequest},
	KindUnsupportedFormat: {"unsupported_format", http.StatusUnprocessableEntity},
	KindMalformedReport:   {"malformed_report", http.StatusUnprocessableEntity},
	KindTooLarge:          {"too_large", http.StatusRequestEntityTooLarge},
	KindInternal:          {"internal", http.StatusInternalServerError},
}

func (k Kind) String() string {
	if int(k) < len(kinds) {
		return kinds[k].code
	}
	return kinds[KindUnknown].code
}

// HTTPStatus is the status the API answers with for k.
func (k Kind) HTTPStatus() int {
	if int(k) < len(kinds) {
		return kinds[k].status
	}
	return http.StatusInternalServerError
}

// Error is a classified failure. Op names the operation, such as
// "sarif.Parse"; Message is safe to show to API clients.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error joins the non-empty parts as "op: message: cause".
func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so sentinels such as
// ErrUnsupportedFormat work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E builds an Error from a Kind, up to two strings (Op then Message) and a
// cause, in any order.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// Wrap prefixes err with op and keeps its Kind. Wrap(nil) is nil.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: GetKind(err), Op: op, Err: err}
}

// WrapWithMessage prefixes err with message and keeps its Kind.
func WrapWithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: GetKind(err), Message: message, Err: err}
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// GetKind returns the outermost known Kind in err's chain.
func GetKind(err error) Kind {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

func IsUnsupportedFormat(err error) bool { return GetKind(err) == KindUnsupportedFormat }

func IsMalformedReport(err error) bool { return GetKind(err) == KindMalformedReport }

func IsInvalidInput(err error) bool { return GetKind(err) == KindInvalidInput }

// IsTooLarge also recognizes http.MaxBytesReader failures and 413 API errors.
func IsTooLarge(err error) bool {
	if GetKind(err) == KindTooLarge {
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.StatusCode == http.StatusRequestEntityTooLarge
	}
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// APIError is the JSON error body returned by the HTTP API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	s := fmt.Sprintf("[%s] %s: %s", e.Code, http.StatusText(e.StatusCode), e.Message)
	if e.RequestID != "" {
		s += " (request_id: " + e.RequestID + ")"
	}
	return s
}

// IsAPIError returns the first *APIError in err's chain.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// ToAPIError converts err into the body served to API clients. Unknown and
// internal errors are reported as "internal error" without their cause.
func ToAPIError(err error, requestID string) *APIError {
	kind := GetKind(err)
	msg := "internal error"
	if kind != KindUnknown && kind != KindInternal {
		msg = clientMessage(err)
	}
	return &APIError{
		StatusCode: kind.HTTPStatus(),
		Code:       kind.String(),
		Message:    msg,
		RequestID:  requestID,
	}
}

// clientMessage renders err from its first Message on, dropping the Op
// prefixes of outer layers.
func clientMessage(err error) string {
	var e *Error
	for errors.As(err, &e) {
		switch {
		case e.Message != "" && e.Err != nil:
			return e.Message + ": " + e.Err.Error()
		case e.Message != "":
			return e.Message
		case e.Err == nil:
			return err.Error()
		}
		err = e.Err
	}
	return err.Error()
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedFormat = &Error{
		Kind:    KindUnsupportedFormat,
		Message: "unsupported format: expected SARIF v2.1.0, Semgrep JSON, or GitLab SAST JSON",
	}
	ErrNotObject = &Error{Kind: KindMalformedReport, Message: "report must be a JSON object"}
	ErrTooLarge  = &Error{Kind: KindTooLarge, Message: "report exceeds maximum size of 50MB"}
)
