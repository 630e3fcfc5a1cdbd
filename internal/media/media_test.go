package media

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanReader hands out packets pushed into pkts and fails once closed.
type chanReader struct {
	pkts chan *rtp.Packet
}

func newChanReader() *chanReader {
	return &chanReader{pkts: make(chan *rtp.Packet, 8)}
}

func (r *chanReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-r.pkts
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

func TestLocalTrackToggleNeverStops(t *testing.T) {
	track, err := NewLocalTrack(webrtc.RTPCodecTypeAudio, "s1")
	require.NoError(t, err)
	require.NotNil(t, track.Local())
	assert.False(t, track.IsRemote())

	for i := 0; i < 5; i++ {
		track.SetEnabled(false)
		track.SetEnabled(true)
	}
	track.SetEnabled(false)
	assert.True(t, track.Live())
	assert.False(t, track.Enabled())
	assert.NoError(t, track.WriteSample(pionmedia.Sample{Data: []byte{1}, Duration: time.Millisecond}))
}

func TestTrackStopIsIdempotentAndFiresOnEnded(t *testing.T) {
	track, err := NewLocalTrack(webrtc.RTPCodecTypeVideo, "s1")
	require.NoError(t, err)

	var calls atomic.Int32
	track.OnEnded(func() { calls.Add(1) })
	track.Stop()
	track.Stop()

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, track.Live())
	assert.ErrorIs(t, track.WriteSample(pionmedia.Sample{Data: []byte{1}}), ErrTrackEnded)

	select {
	case <-track.Done():
	default:
		t.Fatal("done channel not closed")
	}

	// Registering after the end is a no-op.
	track.OnEnded(func() { calls.Add(1) })
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteTrackRelay(t *testing.T) {
	src := newChanReader()
	track := NewRemoteTrack(src, webrtc.RTPCodecTypeAudio, "remote-audio")
	assert.True(t, track.IsRemote())
	assert.Nil(t, track.Local())

	got := make(chan *rtp.Packet, 2)
	track.OnPacket(func(p *rtp.Packet) { got <- p })

	src.pkts <- &rtp.Packet{Payload: []byte{1, 2, 3}}

	select {
	case <-track.Flowing():
	case <-time.After(time.Second):
		t.Fatal("track never started flowing")
	}
	select {
	case p := <-got:
		assert.Equal(t, []byte{1, 2, 3}, p.Payload)
	case <-time.After(time.Second):
		t.Fatal("sink not called")
	}
	packets, bytes := track.Stats()
	assert.Equal(t, uint64(1), packets)
	assert.Equal(t, uint64(3), bytes)

	close(src.pkts)
	select {
	case <-track.Done():
	case <-time.After(time.Second):
		t.Fatal("track did not end after source closed")
	}
}

func TestStreamLiveOnFirstFlowingTrack(t *testing.T) {
	s := NewStream()
	src := newChanReader()
	track := NewRemoteTrack(src, webrtc.RTPCodecTypeAudio, "a")
	s.AddTrack(track)
	s.AddTrack(track)
	assert.Len(t, s.Tracks(), 1)

	select {
	case <-s.Live():
		t.Fatal("stream live before any packet")
	case <-time.After(50 * time.Millisecond):
	}

	src.pkts <- &rtp.Packet{Payload: []byte{0}}
	select {
	case <-s.Live():
	case <-time.After(time.Second):
		t.Fatal("stream never became live")
	}
	assert.Len(t, s.AudioTracks(), 1)
	assert.Empty(t, s.VideoTracks())
	assert.Equal(t, 1, s.LiveTracks())

	s.Stop()
	close(src.pkts)
	assert.Equal(t, 0, s.LiveTracks())
}

func TestConstraintsFor(t *testing.T) {
	audio := ConstraintsFor(domain.MediaAudio)
	assert.True(t, audio.Audio)
	assert.Nil(t, audio.Video)

	video := ConstraintsFor(domain.MediaVideo)
	assert.True(t, video.Audio)
	require.NotNil(t, video.Video)
	assert.Equal(t, 1280, video.Video.Width)
	assert.Equal(t, 720, video.Video.Height)
}

func TestSyntheticDevices(t *testing.T) {
	ctx := context.Background()

	_, err := SyntheticDevices{Denied: true, Microphone: true}.GetUserMedia(ctx, ConstraintsFor(domain.MediaAudio))
	var mae *MediaAccessError
	require.ErrorAs(t, err, &mae)
	assert.Equal(t, ReasonPermissionDenied, mae.Reason)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = SyntheticDevices{Microphone: true}.GetUserMedia(ctx, ConstraintsFor(domain.MediaVideo))
	require.ErrorAs(t, err, &mae)
	assert.Equal(t, ReasonNotFound, mae.Reason)

	stream, err := SyntheticDevices{Microphone: true, Camera: true}.GetUserMedia(ctx, ConstraintsFor(domain.MediaVideo))
	require.NoError(t, err)
	assert.Len(t, stream.AudioTracks(), 1)
	assert.Len(t, stream.VideoTracks(), 1)
	stream.Stop()
	assert.Equal(t, 0, stream.LiveTracks())

	screen, err := SyntheticDevices{Screen: true}.GetDisplayMedia(ctx)
	require.NoError(t, err)
	assert.Equal(t, webrtc.RTPCodecTypeVideo, screen.Kind())
	screen.Stop()
}

func TestAsAccessError(t *testing.T) {
	mae := AsAccessError(ErrPermissionDenied)
	assert.Equal(t, ReasonPermissionDenied, mae.Reason)

	mae = AsAccessError(errors.New("no webcam"))
	assert.Equal(t, ReasonNotFound, mae.Reason)

	orig := &MediaAccessError{Reason: ReasonPermissionDenied, Err: ErrPermissionDenied}
	assert.Same(t, orig, AsAccessError(orig))
}
