package common

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error meant for the client. Message and Fields are sent as
// the response body; Cause is only logged.
type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
	Cause   error          `json:"-"`
}

func (e APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e APIError) Unwrap() error {
	return e.Cause
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an APIError with a client-safe message that keeps cause for
// the server log.
func Wrap(status int, cause error, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// AsAPIError finds an APIError in err's chain. Anything else becomes a bare
// 500 that carries err as its cause.
func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return Wrap(http.StatusInternalServerError, err, "internal server error"), false
}
