package media

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RTPReader is the read side of a remote track (*webrtc.TrackRemote).
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// NewRemoteTrack wraps src and starts relaying its packets to the track sinks.
// The relay stops, and the track ends, when src returns an error.
func NewRemoteTrack(src RTPReader, kind webrtc.RTPCodecType, id string) *Track {
	t := newTrack(id, kind)
	logger := log.With().
		Str("module", "media.relay").
		Str("track_id", id).
		Str("kind", kind.String()).
		Logger()
	go t.relay(src, &logger)
	return t
}

// relay reads RTP packets from the source and forwards them to all sinks.
func (t *Track) relay(src RTPReader, logger *zerolog.Logger) {
	defer t.Stop()
	for {
		if !t.Live() {
			logger.Debug().Msg("track stopped, leaving relay")
			return
		}
		pkt, _, err := src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			return
		}
		t.forward(pkt)
	}
}

func (t *Track) forward(pkt *rtp.Packet) {
	t.flowOnce.Do(func() { close(t.flowing) })
	t.packets.Add(1)
	t.bytes.Add(uint64(len(pkt.Payload)))

	t.mu.Lock()
	snapshot := make([]func(*rtp.Packet), len(t.sinks))
	copy(snapshot, t.sinks)
	t.mu.Unlock()

	for _, sink := range snapshot {
		sink(pkt)
	}
}
