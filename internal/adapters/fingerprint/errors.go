package fingerprint

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPrefix       = errors.New("invalid MAC prefix")
	ErrVendorNotFound      = errors.New("vendor not found")
	ErrRepositoryClosed    = errors.New("repository is closed")
	ErrDatabaseUnavailable = errors.New("OUI database unavailable")
)

// DatabaseError wraps a registry failure with the operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("oui registry %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
