package rtc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/media"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection adapts a pion PeerConnection to core.PeerConnection.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	id     string
	closed atomic.Bool

	mu      sync.RWMutex
	onICE   func(webrtc.ICECandidateInit)
	onTrack func(*media.Track)
	onState func(webrtc.PeerConnectionState)
}

var _ core.PeerConnection = (*WebRTCConnection)(nil)

func newWebRTCConnection(pc *webrtc.PeerConnection, id string) *WebRTCConnection {
	c := &WebRTCConnection{pc: pc, id: id}
	c.bind()
	return c
}

// bind installs pion handlers once; application callbacks are swapped in later.
func (c *WebRTCConnection) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("pc", c.id).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("pc", c.id).Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.RLock()
		fn := c.onState
		c.mu.RUnlock()
		if fn != nil {
			fn(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if cand == nil {
			return
		}
		c.mu.RLock()
		fn := c.onICE
		c.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("pc", c.id).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.RLock()
		fn := c.onTrack
		c.mu.RUnlock()
		remote := media.NewRemoteTrack(track, track.Kind(), track.ID())
		if fn != nil {
			fn(remote)
		}
	})
}

func (c *WebRTCConnection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local offer: %w", err)
	}
	return &offer, nil
}

// ApplyOfferAndCreateAnswer does not wait for ICE gathering: candidates trickle.
func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	return &answer, nil
}

func (c *WebRTCConnection) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func (c *WebRTCConnection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *WebRTCConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("pc", c.id).Msg("close error")
		return err
	}
	log.Info().Str("module", "webrtc").Str("pc", c.id).Msg("closed")
	return nil
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(*media.Track)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *WebRTCConnection) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// AddLocalTrack attaches a local sample track to the PeerConnection.
func (c *WebRTCConnection) AddLocalTrack(track *media.Track) (core.RTPSender, error) {
	local := track.Local()
	if local == nil {
		return nil, fmt.Errorf("track %s is not a local track", track.ID())
	}
	sender, err := c.pc.AddTrack(local)
	if err != nil {
		return nil, err
	}
	go drainRTCP(sender)
	return &rtpSender{sender: sender, track: track}, nil
}

// drainRTCP keeps interceptors (NACK, reports) fed until the sender stops.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type rtpSender struct {
	sender *webrtc.RTPSender

	mu    sync.Mutex
	track *media.Track
}

func (s *rtpSender) ReplaceTrack(track *media.Track) error {
	local := track.Local()
	if local == nil {
		return fmt.Errorf("track %s is not a local track", track.ID())
	}
	if err := s.sender.ReplaceTrack(local); err != nil {
		return err
	}
	s.mu.Lock()
	s.track = track
	s.mu.Unlock()
	return nil
}

func (s *rtpSender) Track() *media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}
