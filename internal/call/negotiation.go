package call

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
	"github.com/pion/webrtc/v4"
)

// setup acquires local media, creates the peer connection, attaches the
// local tracks and registers observers. On error the attempt has failed.
func (s *Session) setup(ctx context.Context, att *attempt) (core.PeerConnection, error) {
	stream, err := s.devices.GetUserMedia(ctx, media.ConstraintsFor(att.kind))
	if err != nil {
		mae := media.AsAccessError(err)
		s.fail(att, mae)
		return nil, mae
	}

	s.mu.Lock()
	if !s.live(att) {
		s.mu.Unlock()
		stream.Stop()
		return nil, ErrSessionClosed
	}
	s.local = stream
	s.mu.Unlock()

	pc, err := s.peers.NewPeerConnection()
	if err != nil {
		err = fmt.Errorf("create peer connection: %w", err)
		s.fail(att, err)
		return nil, err
	}
	s.mu.Lock()
	if !s.live(att) {
		s.mu.Unlock()
		_ = pc.Close()
		return nil, ErrSessionClosed
	}
	att.pc = pc
	s.mu.Unlock()

	pc.OnTrack(func(t *media.Track) { s.handleRemoteTrack(att, t) })
	pc.OnICECandidate(func(c webrtc.ICECandidateInit) { s.handleLocalCandidate(att, c) })
	pc.OnStateChange(func(st webrtc.PeerConnectionState) { s.handlePeerState(att, st) })

	for _, t := range stream.Tracks() {
		sender, err := pc.AddLocalTrack(t)
		if err != nil {
			err = fmt.Errorf("add %s track: %w", t.Kind().String(), err)
			s.fail(att, err)
			return nil, err
		}
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			s.mu.Lock()
			if s.videoSender == nil {
				s.videoSender = sender
				s.camera = t
			}
			s.mu.Unlock()
		}
	}
	return pc, nil
}

func candidateKey(c webrtc.ICECandidateInit) string {
	key := c.Candidate
	if c.SDPMid != nil {
		key += "|" + *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		key += "|" + strconv.Itoa(int(*c.SDPMLineIndex))
	}
	return key
}

// handleLocalCandidate forwards a gathered candidate, or queues it while the
// call id is still unknown.
func (s *Session) handleLocalCandidate(att *attempt, c webrtc.ICECandidateInit) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if !s.live(att) {
		s.mu.Unlock()
		return
	}
	key := candidateKey(c)
	if _, dup := att.sentLocal[key]; dup {
		s.mu.Unlock()
		return
	}
	att.sentLocal[key] = struct{}{}
	if att.callID == "" {
		att.pendingLocal = append(att.pendingLocal, c)
		s.mu.Unlock()
		return
	}
	ctx, id := att.ctx, att.callID
	s.mu.Unlock()

	s.sendCandidate(ctx, id, c)
}

// flushLocal records the call id and sends queued candidates in discovery order.
func (s *Session) flushLocal(att *attempt, id domain.CallID) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if !s.live(att) {
		s.mu.Unlock()
		return false
	}
	att.callID = id
	pending := att.pendingLocal
	att.pendingLocal = nil
	ctx := att.ctx
	s.mu.Unlock()

	for _, c := range pending {
		s.sendCandidate(ctx, id, c)
	}
	return true
}

// sendCandidate is best-effort: losing one candidate rarely breaks connectivity.
func (s *Session) sendCandidate(ctx context.Context, id domain.CallID, c webrtc.ICECandidateInit) {
	if err := s.transport.SendCandidate(ctx, id, c); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Str("call_id", id.String()).Msg("send candidate failed")
	}
}

// addRemoteCandidates applies each new remote candidate exactly once,
// buffering while no remote description is set.
func (s *Session) addRemoteCandidates(att *attempt, cands []webrtc.ICECandidateInit) {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	for _, c := range cands {
		s.mu.Lock()
		if !s.live(att) || att.pc == nil {
			s.mu.Unlock()
			return
		}
		key := candidateKey(c)
		if _, seen := att.seenRemote[key]; seen {
			s.mu.Unlock()
			continue
		}
		att.seenRemote[key] = struct{}{}
		if !att.remoteReady {
			att.pendingRemote = append(att.pendingRemote, c)
			s.mu.Unlock()
			continue
		}
		pc := att.pc
		s.mu.Unlock()

		if err := pc.AddICECandidate(c); err != nil {
			s.logger.Warn().Err(err).Msg("add remote candidate failed")
		}
	}
}

// markRemoteReady flushes buffered remote candidates. Caller holds negMu.
func (s *Session) markRemoteReady(att *attempt) {
	s.mu.Lock()
	if !s.live(att) || att.pc == nil {
		s.mu.Unlock()
		return
	}
	att.remoteReady = true
	pending := att.pendingRemote
	att.pendingRemote = nil
	pc := att.pc
	s.mu.Unlock()

	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			s.logger.Warn().Err(err).Msg("add buffered remote candidate failed")
		}
	}
}

// applyAnswer sets the remote answer once.
func (s *Session) applyAnswer(att *attempt, answer webrtc.SessionDescription) {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	s.mu.Lock()
	if !s.live(att) || att.pc == nil || att.answerApplied {
		s.mu.Unlock()
		return
	}
	pc := att.pc
	s.mu.Unlock()

	if !pc.HasRemoteDescription() {
		if err := pc.ApplyAnswer(answer); err != nil {
			s.fail(att, fmt.Errorf("apply answer: %w", err))
			return
		}
		s.logger.Info().Msg("answer applied")
	}

	s.mu.Lock()
	att.answerApplied = true
	s.mu.Unlock()
	s.markRemoteReady(att)
}

// handlePeerState tears the call down when the transport fails or the peer
// connection closes underneath a live attempt. Disconnected may recover and
// is only logged.
func (s *Session) handlePeerState(att *attempt, st webrtc.PeerConnectionState) {
	s.logger.Debug().Str("peer_state", st.String()).Msg("peer connection state")
	if st != webrtc.PeerConnectionStateFailed && st != webrtc.PeerConnectionStateClosed {
		return
	}
	s.mu.Lock()
	live := s.live(att)
	s.mu.Unlock()
	if !live {
		return
	}
	s.logger.Warn().Str("peer_state", st.String()).Msg("peer connection lost")
	go s.fail(att, fmt.Errorf("%w: %s", ErrPeerFailed, st))
}

func (s *Session) handleRemoteTrack(att *attempt, t *media.Track) {
	s.mu.Lock()
	if !s.live(att) {
		s.mu.Unlock()
		t.Stop()
		return
	}
	remote := s.remote
	s.mu.Unlock()

	s.logger.Info().Str("track_id", t.ID()).Str("kind", t.Kind().String()).Msg("remote track added")
	remote.AddTrack(t)
}
