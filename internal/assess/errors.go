package assess

import (
	"errors"

	"diabetes-risk/internal/features"
	"diabetes-risk/internal/ml"
	"diabetes-risk/internal/present"
)

// Kind separates bad input from classifier failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindInference  Kind = "inference"
)

// UserError is the message a front-end shows in place of a result.
type UserError struct {
	Kind           Kind
	ValidationKind features.ErrorKind // validation errors only
	Field          string             // validation errors only
	Message        string
	cause          error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.cause }

// Display is the text shown in the result area of either front-end.
func (e *UserError) Display() string {
	if e.Kind == KindValidation {
		return present.InvalidInput(e.Message)
	}
	return present.ErrorOccurred(e.Message)
}

func userError(err error) *UserError {
	if ve, ok := features.AsValidationError(err); ok {
		return &UserError{
			Kind:           KindValidation,
			ValidationKind: ve.Kind,
			Field:          ve.Field,
			Message:        ve.Error(),
			cause:          err,
		}
	}
	// Anything else is an inference failure, including errors a custom
	// Inferrer did not wrap.
	msg := err.Error()
	var ie *ml.InferenceError
	if errors.As(err, &ie) && ie.Err != nil {
		msg = ie.Err.Error()
	}
	return &UserError{Kind: KindInference, Message: msg, cause: err}
}
