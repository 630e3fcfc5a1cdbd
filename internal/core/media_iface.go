package core

import (
	"github.com/dkeye/peercall/internal/media"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the negotiated transport of one call.
// Owned exclusively by a call session.
type PeerConnection interface {
	// AddLocalTrack attaches a local track and returns its outbound sender.
	AddLocalTrack(track *media.Track) (RTPSender, error)
	// CreateAndSetOffer creates an offer and commits it as local description.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// ApplyOfferAndCreateAnswer sets the remote offer, then creates and commits an answer.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// ApplyAnswer sets the remote answer.
	ApplyAnswer(answer webrtc.SessionDescription) error
	HasRemoteDescription() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(*media.Track))
	// OnStateChange sets a callback for peer connection state changes.
	OnStateChange(func(webrtc.PeerConnectionState))
	// Close should stop all underlying media resources.
	Close() error
}

// RTPSender is the outbound side of one local track.
type RTPSender interface {
	// ReplaceTrack swaps the outgoing track without renegotiation.
	ReplaceTrack(track *media.Track) error
	Track() *media.Track
}

// PeerFactory produces a fresh peer connection per call attempt.
type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}
