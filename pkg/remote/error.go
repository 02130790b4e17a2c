package remote

import (
	"fmt"
	"net/http"
)

// Category buckets a non-success status so callers can tell a rejected
// request from a rejected credential without matching on exact codes.
type Category string

const (
	// CategoryAuth covers missing or invalid credentials (401, 403).
	CategoryAuth Category = "auth"
	// CategoryClient covers every other 4xx: malformed queries, unknown
	// routes, over-limit requests.
	CategoryClient Category = "client"
	// CategoryServer covers 5xx responses from the service itself.
	CategoryServer Category = "server"
)

// ServiceError is returned when a service answers with a non-success status.
// The call is not retried; the error carries whatever message the service
// put on the wire.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned %d (%s)", e.Service, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
}

// Category classifies the status code.
func (e *ServiceError) Category() Category {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return CategoryAuth
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return CategoryClient
	default:
		return CategoryServer
	}
}
