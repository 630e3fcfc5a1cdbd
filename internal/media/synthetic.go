package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
)

var (
	// Opus TOC byte + padding for a silent 20ms frame.
	opusSilence = []byte{0xf8, 0xff, 0xfe}
	// Minimal VP8 keyframe header followed by an empty partition.
	vp8Blank = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00, 0x00, 0x00}
)

// SyntheticDevices generates silent audio and blank video frames.
// It stands in for real capture hardware in the CLI and in tests.
type SyntheticDevices struct {
	Microphone bool
	Camera     bool
	Screen     bool
	// Denied simulates the user refusing the permission prompt.
	Denied bool
}

func (d SyntheticDevices) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: err}
	}
	if d.Denied {
		return nil, &MediaAccessError{Reason: ReasonPermissionDenied, Err: ErrPermissionDenied}
	}
	if c.Audio && !d.Microphone {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: ErrDeviceNotFound}
	}
	if c.Video != nil && !d.Camera {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: ErrDeviceNotFound}
	}

	streamID := uuid.NewString()
	var tracks []*Track
	if c.Audio {
		t, err := NewLocalTrack(webrtc.RTPCodecTypeAudio, streamID)
		if err != nil {
			return nil, &MediaAccessError{Reason: ReasonNotFound, Err: err}
		}
		tracks = append(tracks, t)
		go generate(t, opusSilence, audioFrameInterval)
	}
	if c.Video != nil {
		t, err := NewLocalTrack(webrtc.RTPCodecTypeVideo, streamID)
		if err != nil {
			for _, started := range tracks {
				started.Stop()
			}
			return nil, &MediaAccessError{Reason: ReasonNotFound, Err: err}
		}
		tracks = append(tracks, t)
		interval := videoFrameInterval
		if c.Video.FrameRate > 0 {
			interval = time.Second / time.Duration(c.Video.FrameRate)
		}
		go generate(t, vp8Blank, interval)
	}
	return NewStream(tracks...), nil
}

func (d SyntheticDevices) GetDisplayMedia(ctx context.Context) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: err}
	}
	if d.Denied {
		return nil, &MediaAccessError{Reason: ReasonPermissionDenied, Err: ErrPermissionDenied}
	}
	if !d.Screen {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: ErrDeviceNotFound}
	}
	t, err := NewLocalTrack(webrtc.RTPCodecTypeVideo, "screen-"+uuid.NewString())
	if err != nil {
		return nil, &MediaAccessError{Reason: ReasonNotFound, Err: err}
	}
	go generate(t, vp8Blank, videoFrameInterval)
	return t, nil
}

// generate writes one frame per interval until the track ends.
func generate(t *Track, frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(pionmedia.Sample{Data: frame, Duration: interval}); err != nil && t.Live() {
				log.Debug().Err(err).Str("module", "media.synthetic").Str("track_id", t.ID()).Msg("write sample")
			}
		}
	}
}
