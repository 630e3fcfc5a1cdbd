package call

import (
	"context"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

// AnswerCall accepts an incoming offer. Afterwards the session only polls
// for remote candidates.
func (s *Session) AnswerCall(ctx context.Context, id domain.CallID, offer webrtc.SessionDescription, kind domain.MediaKind) error {
	if id == "" {
		return ErrEmptyCallID
	}
	if !kind.Valid() {
		return domain.ErrUnknownMediaKind
	}
	att, err := s.begin(domain.RoleCallee, kind, id)
	if err != nil {
		return err
	}

	pc, err := s.setup(ctx, att)
	if err != nil {
		return err
	}

	s.transition(att, domain.StateNegotiating, nil)
	s.negMu.Lock()
	answer, err := pc.ApplyOfferAndCreateAnswer(offer)
	if err == nil {
		s.markRemoteReady(att)
	}
	s.negMu.Unlock()
	if err != nil {
		err = fmt.Errorf("apply offer: %w", err)
		s.fail(att, err)
		return err
	}

	if err := s.transport.SendAnswer(ctx, id, *answer); err != nil {
		err = asSignalingError("send answer", err)
		s.fail(att, err)
		return err
	}
	s.logger.Info().Str("call_id", id.String()).Msg("answer delivered")

	s.mu.Lock()
	ok := s.live(att)
	s.mu.Unlock()
	if !ok {
		return ErrSessionClosed
	}
	s.startLoops(att)
	return nil
}
