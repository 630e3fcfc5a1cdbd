// Package media holds the local and remote track handles a call hands to the UI.
package media

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

var ErrTrackEnded = errors.New("track ended")

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateEnded
)

// Track is a single audio or video track. Local tracks wrap a pion sample
// track that can be attached to a peer connection; remote tracks are fed by
// a relay reading RTP from the network.
type Track struct {
	id   string
	kind webrtc.RTPCodecType

	local *webrtc.TrackLocalStaticSample

	enabled atomic.Bool
	state   atomic.Int32 // Zero by default (TrackStateLive)

	packets atomic.Uint64
	bytes   atomic.Uint64

	mu      sync.Mutex
	onEnded []func()
	sinks   []func(*rtp.Packet)

	flowing  chan struct{}
	flowOnce sync.Once
	done     chan struct{}
	endOnce  sync.Once
}

func newTrack(id string, kind webrtc.RTPCodecType) *Track {
	t := &Track{
		id:      id,
		kind:    kind,
		flowing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	t.enabled.Store(true)
	return t
}

func codecFor(kind webrtc.RTPCodecType) (webrtc.RTPCodecCapability, error) {
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, nil
	case webrtc.RTPCodecTypeVideo:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("unsupported track kind %q", kind.String())
	}
}

// NewLocalTrack creates a sendable track of the given kind.
func NewLocalTrack(kind webrtc.RTPCodecType, streamID string) (*Track, error) {
	codec, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	id := kind.String() + "-" + uuid.NewString()
	local, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create local %s track: %w", kind.String(), err)
	}
	t := newTrack(id, kind)
	t.local = local
	return t, nil
}

func (t *Track) ID() string                { return t.id }
func (t *Track) Kind() webrtc.RTPCodecType { return t.kind }
func (t *Track) IsRemote() bool            { return t.local == nil }

// Local returns the pion track to attach to a sender, nil for remote tracks.
func (t *Track) Local() webrtc.TrackLocal {
	if t.local == nil {
		return nil
	}
	return t.local
}

func (t *Track) Enabled() bool { return t.enabled.Load() }

// SetEnabled mutes or unmutes the track. It never stops it.
func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *Track) State() TrackState { return TrackState(t.state.Load()) }

func (t *Track) Live() bool { return t.State() == TrackStateLive }

// Done is closed once the track has ended.
func (t *Track) Done() <-chan struct{} { return t.done }

// Flowing is closed when the first RTP packet of a remote track arrives.
func (t *Track) Flowing() <-chan struct{} { return t.flowing }

// OnEnded registers fn to run once when the track ends.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Live() {
		return
	}
	t.onEnded = append(t.onEnded, fn)
}

// OnPacket adds a sink that receives every RTP packet of a remote track.
func (t *Track) OnPacket(fn func(*rtp.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, fn)
}

// Stats returns packet and byte counters of a remote track.
func (t *Track) Stats() (packets, bytes uint64) {
	return t.packets.Load(), t.bytes.Load()
}

// WriteSample sends one encoded frame. Disabled tracks drop it silently.
func (t *Track) WriteSample(s pionmedia.Sample) error {
	if !t.Live() {
		return ErrTrackEnded
	}
	if t.local == nil {
		return fmt.Errorf("track %s is not writable", t.id)
	}
	if !t.Enabled() {
		return nil
	}
	return t.local.WriteSample(s)
}

// Stop ends the track. Safe to call more than once.
func (t *Track) Stop() {
	t.endOnce.Do(func() {
		t.mu.Lock()
		t.state.Store(int32(TrackStateEnded))
		callbacks := t.onEnded
		t.onEnded = nil
		t.mu.Unlock()

		close(t.done)
		for _, fn := range callbacks {
			fn()
		}
	})
}
