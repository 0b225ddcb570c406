package sentinel

import "fmt"

// AuthError signals that provider credentials are missing or rejected.
// It is fatal for the request and is never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sentinel hub authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return asAuthError(err, &authErr)
}
