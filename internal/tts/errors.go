package tts

import (
	"errors"
	"fmt"
)

// ValidationError reports a client-caused problem with a request field.
// Requests failing validation never touch the model cache.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LoadError reports that constructing the model for a variant failed. The
// cache is left without an entry for the variant, so a later request
// retries the load.
type LoadError struct {
	Variant Variant
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s model: %v", e.Variant, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// GenerationError reports that a loaded model failed during synthesis.
// The cache entry stays; the model is assumed usable for the next request.
type GenerationError struct {
	Variant Variant
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating with %s model: %v", e.Variant, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a client-caused validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsLoad reports whether err stems from model construction.
func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
