package llms

import (
	"errors"
	"fmt"
)

// ErrTokenLimitExceeded marks generation failures caused by the model's
// context window. Callers match it with errors.Is and recover by
// truncating the transcript.
var ErrTokenLimitExceeded = errors.New("model token limit exceeded")

// TokenLimitError wraps a provider error classified as a context
// overflow. It matches ErrTokenLimitExceeded.
type TokenLimitError struct {
	Model string
	Err   error
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("token limit exceeded for model %s: %v", e.Model, e.Err)
}

func (e *TokenLimitError) Unwrap() error {
	return e.Err
}

func (e *TokenLimitError) Is(target error) bool {
	return target == ErrTokenLimitExceeded
}

// StructuredOutputError reports that a model failed to produce output
// matching the requested schema within the retry budget.
type StructuredOutputError struct {
	Model    string
	Schema   string
	Attempts int
	Err      error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("model %s failed to produce valid %s output after %d attempts: %v",
		e.Model, e.Schema, e.Attempts, e.Err)
}

func (e *StructuredOutputError) Unwrap() error {
	return e.Err
}
