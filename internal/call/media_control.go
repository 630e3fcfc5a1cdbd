package call

import (
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/media"
	"github.com/pion/webrtc/v4"
)

// ToggleMicrophone mutes or unmutes every local audio track.
// It never stops tracks and never renegotiates.
func (s *Session) ToggleMicrophone(enabled bool) {
	s.setEnabled(webrtc.RTPCodecTypeAudio, enabled)
}

// ToggleCamera enables or disables every local video track.
func (s *Session) ToggleCamera(enabled bool) {
	s.setEnabled(webrtc.RTPCodecTypeVideo, enabled)
}

func (s *Session) setEnabled(kind webrtc.RTPCodecType, enabled bool) {
	s.mu.Lock()
	local := s.local
	s.mu.Unlock()
	if local == nil {
		return
	}
	for _, t := range local.Tracks() {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
		}
	}
}

// OutboundVideoSender returns the sender carrying local video, or nil for
// audio calls and before setup.
func (s *Session) OutboundVideoSender() core.RTPSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoSender
}

// ReplaceVideoTrack swaps the outgoing video in place, e.g. for screen
// sharing. When the replacement ends the camera track is restored.
func (s *Session) ReplaceVideoTrack(track *media.Track) error {
	s.mu.Lock()
	att := s.att
	if !s.live(att) {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	sender, camera, prev := s.videoSender, s.camera, s.screen
	s.mu.Unlock()
	if sender == nil {
		return ErrNoVideoSender
	}

	if err := sender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}

	s.mu.Lock()
	if track == camera {
		s.screen = nil
	} else {
		s.screen = track
	}
	s.mu.Unlock()

	if prev != nil && prev != track {
		prev.Stop()
	}
	if track == camera {
		return nil
	}

	track.OnEnded(func() { s.revertVideo(att, track) })
	if !track.Live() {
		s.revertVideo(att, track)
	}
	s.logger.Info().Str("track_id", track.ID()).Msg("outbound video replaced")
	return nil
}

func (s *Session) revertVideo(att *attempt, track *media.Track) {
	s.mu.Lock()
	if !s.live(att) || s.screen != track || s.videoSender == nil || s.camera == nil {
		s.mu.Unlock()
		return
	}
	sender, camera := s.videoSender, s.camera
	s.screen = nil
	s.mu.Unlock()

	if err := sender.ReplaceTrack(camera); err != nil {
		s.logger.Error().Err(err).Msg("restore camera track")
		return
	}
	s.logger.Info().Str("track_id", camera.ID()).Msg("camera track restored")
}
