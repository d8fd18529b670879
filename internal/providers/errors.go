package providers

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is wrapped by Chat when the response body cannot be
// decoded or carries no choices.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPError is returned when the provider answers with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}
