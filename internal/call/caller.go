package call

import (
	"context"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
)

// StartCall places an outgoing call and returns the id assigned by the
// signaling mailbox. Media failures return *media.MediaAccessError before
// any network call; offer delivery failures return *core.SignalingError.
// Connection progress is observed through State, Wait or OnStateChange.
func (s *Session) StartCall(ctx context.Context, to domain.UserID, kind domain.MediaKind) (domain.CallID, error) {
	if !kind.Valid() {
		return "", domain.ErrUnknownMediaKind
	}
	att, err := s.begin(domain.RoleCaller, kind, "")
	if err != nil {
		return "", err
	}

	pc, err := s.setup(ctx, att)
	if err != nil {
		return "", err
	}

	s.transition(att, domain.StateNegotiating, nil)
	offer, err := pc.CreateAndSetOffer()
	if err != nil {
		err = fmt.Errorf("create offer: %w", err)
		s.fail(att, err)
		return "", err
	}

	id, err := s.transport.SendOffer(ctx, to, kind, *offer)
	if err != nil {
		err = asSignalingError("send offer", err)
		s.fail(att, err)
		return "", err
	}
	s.logger.Info().Str("call_id", id.String()).Str("to", to.String()).Msg("offer delivered")

	if !s.flushLocal(att, id) {
		// Torn down while the offer was in flight: do not leave the callee ringing.
		s.notifyEnd(id)
		return "", ErrSessionClosed
	}
	s.startLoops(att)
	return id, nil
}
