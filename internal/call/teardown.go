package call

import (
	"context"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
)

// release frees everything the attempt owns: polling and the timeout
// watcher, the peer connection, and every track. It never assumes an
// earlier setup step succeeded, and runs at most once per attempt.
func (s *Session) release(att *attempt) {
	s.mu.Lock()
	if att == nil || att.closed {
		s.mu.Unlock()
		return
	}
	att.closed = true
	att.cancel()
	pc := att.pc
	att.pc = nil
	local := s.local
	remote := s.remote
	screen := s.screen
	s.local = nil
	s.remote = media.NewStream()
	s.screen = nil
	s.camera = nil
	s.videoSender = nil
	s.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			s.logger.Error().Err(err).Msg("close peer connection")
		}
	}
	if local != nil {
		local.Stop()
	}
	if remote != nil {
		remote.Stop()
	}
	if screen != nil {
		screen.Stop()
	}
	s.logger.Info().Str("call_id", att.callID.String()).Msg("call resources released")
}

// fail releases the attempt, tells the mailbox when a call id exists, and
// moves to failed. Resources are gone before the state is observable.
func (s *Session) fail(att *attempt, err error) {
	s.mu.Lock()
	if s.att != att || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	id := att.callID
	s.mu.Unlock()

	s.release(att)
	if id != "" {
		s.notifyEnd(id)
	}
	s.transition(att, domain.StateFailed, err)
}

// remoteEnded handles a hang-up seen through polling.
func (s *Session) remoteEnded(att *attempt) {
	s.logger.Info().Str("call_id", att.callID.String()).Msg("call ended by remote")
	s.release(att)
	s.transition(att, domain.StateEnded, core.ErrCallEnded)
}

// notifyEnd is best-effort: errors are logged, never returned.
func (s *Session) notifyEnd(id domain.CallID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.transport.EndCall(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("call_id", id.String()).Msg("end call notification failed")
	}
}

// Cleanup tears the call down locally. Safe from any state and idempotent.
func (s *Session) Cleanup() {
	s.mu.Lock()
	att := s.att
	s.mu.Unlock()

	s.release(att)
	s.transition(att, domain.StateEnded, nil)
}

// EndCall notifies the mailbox (best-effort) and then cleans up.
func (s *Session) EndCall(ctx context.Context) {
	s.mu.Lock()
	att := s.att
	var id domain.CallID
	notify := false
	if att != nil && !att.closed {
		id = att.callID
		notify = id != ""
	}
	s.mu.Unlock()

	if notify {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		if err := s.transport.EndCall(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("call_id", id.String()).Msg("end call notification failed")
		}
		cancel()
	}
	s.Cleanup()
}
