package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrorKind tags the variant carried by *Error.
type ErrorKind int

const (
	// KindTransport means the request never produced a response.
	KindTransport ErrorKind = iota
	// KindValidation is a structured {detail:[{msg,type}]} payload.
	KindValidation
	// KindUnstructured is any other rejection body.
	KindUnstructured
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindUnstructured:
		return "unstructured"
	default:
		return "unknown"
	}
}

// Detail is one entry of a validation error payload.
type Detail struct {
	Msg  string `json:"msg" validate:"required"`
	Type string `json:"type" validate:"required"`
	Loc  []any  `json:"loc,omitempty"`
}

type validationPayload struct {
	Detail []Detail `json:"detail" validate:"required,min=1,dive"`
}

// Error is the rejection of a gateway call.
// Exactly one of Details (KindValidation), Message (KindUnstructured) or
// Err (KindTransport) is meaningful.
type Error struct {
	Kind    ErrorKind
	Status  int
	URL     string
	Details []Detail
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("api %s: %v", e.URL, e.Err)
	case KindValidation:
		msgs := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			msgs = append(msgs, d.Msg)
		}
		return fmt.Sprintf("api %s: %d: %s", e.URL, e.Status, strings.Join(msgs, "; "))
	default:
		if e.Message == "" {
			return fmt.Sprintf("api %s: status %d", e.URL, e.Status)
		}
		return fmt.Sprintf("api %s: %d: %s", e.URL, e.Status, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// decodeError turns a non-2xx body into the matching *Error variant.
// POST: never returns nil; Kind is KindValidation or KindUnstructured
func decodeError(status int, url string, body []byte) *Error {
	trimmed := bytes.TrimSpace(body)

	var payload validationPayload
	if json.Unmarshal(trimmed, &payload) == nil && Validator().Struct(payload) == nil {
		return &Error{Kind: KindValidation, Status: status, URL: url, Details: payload.Detail}
	}

	return &Error{Kind: KindUnstructured, Status: status, URL: url, Message: unstructuredMessage(trimmed)}
}

// unstructuredMessage extracts a displayable text from a rejection body:
// a JSON string, {"detail": "..."}, {"message": "..."} or the raw text.
func unstructuredMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(body, &s) == nil {
		return s
	}
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return string(body)
}
