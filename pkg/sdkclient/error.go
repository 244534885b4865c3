// Copyright 2025 Certen Protocol

package sdkclient

import "fmt"

// Error is a structured error returned by the gateway, carrying the HTTP
// status and the {code, message} body the gateway's writeError produces.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a gateway 404 response.
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.StatusCode == 404
}

// IsValidation reports whether err is a gateway 400 response.
func IsValidation(err error) bool {
	e, ok := err.(*Error)
	return ok && e.StatusCode == 400
}

// IsAuthorization reports whether err is a gateway 401/403 response.
func IsAuthorization(err error) bool {
	e, ok := err.(*Error)
	return ok && (e.StatusCode == 401 || e.StatusCode == 403)
}
