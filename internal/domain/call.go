package domain

import "errors"

var ErrUnknownMediaKind = errors.New("unknown media kind")

// CallID is assigned by the signaling mailbox when an offer is accepted.
type CallID string

func (c CallID) String() string { return string(c) }

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(s)
	if !k.Valid() {
		return "", ErrUnknownMediaKind
	}
	return k, nil
}

func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

// HasVideo reports whether a camera should be requested for this kind.
func (k MediaKind) HasVideo() bool { return k == MediaVideo }

type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)
