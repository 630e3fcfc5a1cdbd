package core

import (
	"errors"
	"fmt"
)

// ErrCallEnded means the other side (or the server) already ended the call.
var ErrCallEnded = errors.New("call ended")

// SignalingError is a delivery failure at the transport layer.
type SignalingError struct {
	Op     string
	Status int
	Err    error
}

func (e *SignalingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("signaling %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
}

func (e *SignalingError) Unwrap() error { return e.Err }
