package models

import (
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is; every error returned by the
// classification pipeline wraps exactly one of these.
var (
	// Construction failures. The pipeline instance is unusable.
	ErrModelLoadFailed      = errors.New("model load failed")
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")

	// Input failures. Recoverable by the caller.
	ErrEmptyInput = errors.New("input is empty or whitespace")

	// Computation failures. Retry locally or defer to the remote backend.
	ErrInferenceFailed = errors.New("inference failed")

	// Contract violations between the registry and the model output shape.
	// These indicate a packaging bug and must not be retried.
	ErrInvalidScoreVector   = errors.New("invalid score vector length")
	ErrInvalidCategoryIndex = errors.New("invalid category index")
)

// ClassificationError is the typed failure returned by every pipeline stage.
type ClassificationError struct {
	Kind error  // one of the Err* kinds above
	Op   string // stage that failed: tokenize, infer, normalize, decide, load
	Err  error  // underlying cause, may be nil
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Is matches the error's kind.
func (e *ClassificationError) Is(target error) bool {
	return e.Kind == target
}

// NewError builds a ClassificationError.
func NewError(kind error, op string, err error) error {
	return &ClassificationError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the failure kind carried by err, or nil if err did not
// come from the pipeline.
func KindOf(err error) error {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

// IsRetryable reports whether a failed classification may succeed if tried
// again. Only computation failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInferenceFailed)
}

// IsContractViolation reports whether err signals a mismatch between the
// category registry and the model.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrInvalidScoreVector) || errors.Is(err, ErrInvalidCategoryIndex)
}

// IsConstructionFailure reports whether err came from loading the
// tokenizer or model.
func IsConstructionFailure(err error) bool {
	return errors.Is(err, ErrModelLoadFailed) || errors.Is(err, ErrTokenizerUnavailable)
}
