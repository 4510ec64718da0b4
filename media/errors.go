package media

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input: missing fields, unknown status values.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupportedType marks an upload whose media type the gate rejected.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrNotFound marks an operation on an id that does not exist.
	ErrNotFound = errors.New("media item not found")
	// ErrForbidden marks a principal acting outside its roles or ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a transition the current status does not allow.
	ErrConflict = errors.New("conflict")
	// ErrTooLarge marks an upload over the configured size cap.
	ErrTooLarge = errors.New("file too large")
)

// UpstreamError is a failure reported by an external collaborator, either the
// encoder process or the streaming service. Detail carries its output verbatim.
type UpstreamError struct {
	Service    string
	StatusCode int
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s responded %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
	default:
		return e.Service + " failed"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
