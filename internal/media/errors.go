package media

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
)

type AccessReason string

const (
	ReasonPermissionDenied AccessReason = "permission-denied"
	ReasonNotFound         AccessReason = "not-found"
)

// MediaAccessError reports that local capture could not start.
// It is never retried automatically.
type MediaAccessError struct {
	Reason AccessReason
	Err    error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access (%s): %v", e.Reason, e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// AsAccessError classifies err into a *MediaAccessError.
func AsAccessError(err error) *MediaAccessError {
	var mae *MediaAccessError
	if errors.As(err, &mae) {
		return mae
	}
	reason := ReasonNotFound
	if errors.Is(err, ErrPermissionDenied) {
		reason = ReasonPermissionDenied
	}
	return &MediaAccessError{Reason: reason, Err: err}
}
