package client

import "errors"

// ErrUnauthorized is returned when the backend rejects the credentials or token.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned when the requested resource or session does not
// exist, has expired, or was already ended.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on duplicate registration or a lost concurrent update.
var ErrConflict = errors.New("conflict")

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
