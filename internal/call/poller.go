package call

import (
	"errors"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

func (s *Session) startLoops(att *attempt) {
	go s.watchConnect(att)
	go s.pollLoop(att)
}

// watchConnect races the connect timeout against the first live remote track.
func (s *Session) watchConnect(att *attempt) {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-remote.Live():
		s.transition(att, domain.StateConnected, nil)
	case <-timer.C:
		select {
		case <-remote.Live():
			s.transition(att, domain.StateConnected, nil)
			return
		default:
		}
		s.logger.Warn().Dur("timeout", s.cfg.ConnectTimeout).Msg("no remote media")
		s.fail(att, ErrConnectionTimeout)
	case <-att.ctx.Done():
	}
}

func (s *Session) pollLoop(att *attempt) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-att.ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
		if !att.polling.CompareAndSwap(false, true) {
			s.logger.Debug().Msg("previous poll still running, tick skipped")
			continue
		}
		go func() {
			defer att.polling.Store(false)
			s.pollOnce(att)
		}()
	}
}

// pollOnce asks the mailbox for an answer (caller only) and new candidates.
// Errors are logged; one failed poll never aborts the call.
func (s *Session) pollOnce(att *attempt) {
	s.mu.Lock()
	if !s.live(att) || att.pc == nil {
		s.mu.Unlock()
		return
	}
	ctx, id := att.ctx, att.callID
	needAnswer := att.role == domain.RoleCaller && !att.answerApplied
	s.mu.Unlock()

	if needAnswer {
		answer, err := s.transport.PollAnswer(ctx, id)
		switch {
		case errors.Is(err, core.ErrCallEnded):
			s.remoteEnded(att)
			return
		case err != nil:
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("call_id", id.String()).Msg("poll answer failed")
			}
		case answer != nil:
			s.applyAnswer(att, *answer)
		}
	}

	if ctx.Err() != nil {
		return
	}
	cands, err := s.transport.PollCandidates(ctx, id)
	switch {
	case errors.Is(err, core.ErrCallEnded):
		s.remoteEnded(att)
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("call_id", id.String()).Msg("poll candidates failed")
		}
	case len(cands) > 0:
		s.addRemoteCandidates(att, cands)
	}
}
