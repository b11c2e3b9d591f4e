package reservation

import (
	"errors"

	"leihlokal/internal/recordapi"
)

// GenericErrorMessage is shown when a failure carries no usable message.
const GenericErrorMessage = "Ein Fehler ist aufgetreten. Bitte versuchen Sie es erneut."

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrNoPickup         = errors.New("no pickup selected")
	ErrInvalidPickup    = errors.New("pickup outside opening hours")
	ErrTokenNotFound    = errors.New("confirmation token not found")
	ErrAlreadySubmitted = errors.New("submission already in progress")
)

// ValidationError blocks a submission before any network call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrorMessage renders err for the visitor. Validation errors use their own
// message. Record API errors list per-field problems, falling back to the
// top-level message. Anything else gets GenericErrorMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var apiErr *recordapi.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.FieldMessages(); msg != "" {
			return msg
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return GenericErrorMessage
}
