package httpapi

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator extracts the calling user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts a user ID header set by an upstream gateway.
type HeaderAuthenticator struct {
	Header string
}

// Authenticate returns the trimmed header value.
func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	user := strings.TrimSpace(r.Header.Get(a.Header))
	if user == "" {
		return "", ErrUnauthenticated
	}
	return user, nil
}
