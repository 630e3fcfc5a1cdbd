package domain

// ConnectionState is the lifecycle of one call attempt.
// Order matters: a session only ever moves forward, and Ended/Failed absorb.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateAcquiringMedia
	StateNegotiating
	StateConnected
	StateEnded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateAcquiringMedia: "acquiring-media",
	StateNegotiating:    "negotiating",
	StateConnected:      "connected",
	StateEnded:          "ended",
	StateFailed:         "failed",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s ConnectionState) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// CanTransition reports whether next is a legal successor of s.
// Any live state may jump straight to a terminal one.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	return next > s
}
