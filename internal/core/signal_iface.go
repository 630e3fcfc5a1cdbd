package core

import (
	"context"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

// SignalingTransport is the mailbox a call session talks to.
// It has no push channel: answers and candidates are polled.
type SignalingTransport interface {
	SendOffer(ctx context.Context, to domain.UserID, kind domain.MediaKind, offer webrtc.SessionDescription) (domain.CallID, error)
	SendAnswer(ctx context.Context, id domain.CallID, answer webrtc.SessionDescription) error
	// PollAnswer returns nil without error while no answer exists.
	PollAnswer(ctx context.Context, id domain.CallID) (*webrtc.SessionDescription, error)
	SendCandidate(ctx context.Context, id domain.CallID, candidate webrtc.ICECandidateInit) error
	// PollCandidates consumes queued remote candidates.
	PollCandidates(ctx context.Context, id domain.CallID) ([]webrtc.ICECandidateInit, error)
	EndCall(ctx context.Context, id domain.CallID) error
}

// IncomingCall is an offer waiting for the authenticated user.
type IncomingCall struct {
	CallID domain.CallID             `json:"callId"`
	From   domain.UserID             `json:"from"`
	Kind   domain.MediaKind          `json:"type"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

// IncomingLister is implemented by transports that can list pending offers.
type IncomingLister interface {
	IncomingCalls(ctx context.Context) ([]IncomingCall, error)
}
