package call

import (
	"errors"

	"github.com/dkeye/peercall/internal/core"
)

var (
	// ErrConnectionTimeout means no remote media arrived in time. A NAT that
	// STUN cannot traverse looks exactly like this.
	ErrConnectionTimeout = errors.New("connection timeout: no remote media")

	// ErrPeerFailed means the peer connection failed or closed mid-call.
	ErrPeerFailed = errors.New("peer connection failed")

	ErrCallInProgress = errors.New("call already in progress")
	ErrNoActiveCall   = errors.New("no active call")
	ErrNoVideoSender  = errors.New("no outbound video sender")
	ErrSessionClosed  = errors.New("session closed during setup")
	ErrEmptyCallID    = errors.New("empty call id")
)

func asSignalingError(op string, err error) error {
	var se *core.SignalingError
	if errors.As(err, &se) {
		return err
	}
	return &core.SignalingError{Op: op, Err: err}
}
