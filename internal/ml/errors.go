package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned by Load when the artifact path does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrUnsupportedArtifact is returned when no backend can handle the artifact.
	ErrUnsupportedArtifact = errors.New("unsupported model artifact")

	// ErrFeatureMismatch is returned when an artifact was trained on a
	// different feature order than the contract.
	ErrFeatureMismatch = errors.New("artifact feature names do not match the feature contract")
)

// InferenceError wraps any failure raised while running the classifier.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ModelNotFoundError carries the expected path alongside ErrModelNotFound.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: expected %s", e.Path)
}

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }
