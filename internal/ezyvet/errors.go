package ezyvet

import (
	"fmt"
)

// APIError is a fatal transport failure: the API replied with a
// non-200 status and the single retry failed too.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ezyvet API returned status %d: %s", e.StatusCode, e.Body)
}
