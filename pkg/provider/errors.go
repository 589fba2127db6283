package provider

import (
	"errors"
	"fmt"
)

// ErrProviderPermanent is wrapped by errors that the caller should not retry:
// authentication failures, malformed requests, 4xx other than 429.
var ErrProviderPermanent = errors.New("provider: permanent error")

// ErrInvalidJSON is returned when ResponseFormatJSON was requested and the
// model's reply did not parse as JSON even after the stricter retry.
var ErrInvalidJSON = errors.New("provider: response is not valid JSON")

// Error carries the status code and model context for a failed completion.
type Error struct {
	Provider   string
	Model      string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s(%s): HTTP %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error {
	if e.Permanent {
		return errors.Join(ErrProviderPermanent, e.Err)
	}
	return e.Err
}
