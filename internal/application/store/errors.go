package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"crmpilates/internal/adapters/api"
)

// Message types that do not come from the API.
const (
	TypeRequestFailed = "request_failed"
	TypeCancelled     = "cancelled"
	TypeUnstructured  = "error"
	TypeValidation    = "validation"
)

// RequestFailed is the text shown when a call produced nothing displayable.
const RequestFailed = "request failed"

// ErrorMessage is one displayable error stored in slice state.
type ErrorMessage struct {
	Message string
	Type    string
	Origin  string
}

// ActionError is returned by async actions whose call was rejected.
// The same messages are stored in the slice's Error field.
type ActionError struct {
	Origin   string
	Messages []ErrorMessage
	Err      error
}

func (e *ActionError) Error() string {
	if len(e.Messages) == 0 {
		return e.Origin + ": " + RequestFailed
	}
	texts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		texts = append(texts, m.Message)
	}
	return e.Origin + ": " + strings.Join(texts, "; ")
}

func (e *ActionError) Unwrap() error { return e.Err }

// MapActionError turns a rejected call into displayable messages.
// Validation payloads yield one message per detail, in order; any other
// rejection with text yields one message; everything else is "request failed".
// POST: returns nil only for a nil err
func MapActionError(err error, origin string) []ErrorMessage {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return []ErrorMessage{{Message: "request cancelled", Type: TypeCancelled, Origin: origin}}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.KindValidation:
			msgs := make([]ErrorMessage, 0, len(apiErr.Details))
			for _, d := range apiErr.Details {
				msgs = append(msgs, ErrorMessage{Message: d.Msg, Type: d.Type, Origin: origin})
			}
			return msgs
		case api.KindUnstructured:
			if strings.TrimSpace(apiErr.Message) != "" {
				return []ErrorMessage{{Message: apiErr.Message, Type: TypeUnstructured, Origin: origin}}
			}
		}
		return []ErrorMessage{{Message: RequestFailed, Type: TypeRequestFailed, Origin: origin}}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]ErrorMessage, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, ErrorMessage{Message: fieldMessage(fe), Type: TypeValidation, Origin: origin})
		}
		return msgs
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return []ErrorMessage{{Message: inputErr.Err.Error(), Type: TypeValidation, Origin: origin}}
	}

	return []ErrorMessage{{Message: RequestFailed, Type: TypeRequestFailed, Origin: origin}}
}

// InputError wraps a domain validation error raised before any call.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
