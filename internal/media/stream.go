package media

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Stream is an ordered set of tracks. A remote stream is an accumulator:
// the session appends to it and the UI only reads.
type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []*Track

	live     chan struct{}
	liveOnce sync.Once
}

func NewStream(tracks ...*Track) *Stream {
	s := &Stream{
		id:   uuid.NewString(),
		live: make(chan struct{}),
	}
	for _, t := range tracks {
		s.AddTrack(t)
	}
	return s
}

func (s *Stream) ID() string { return s.id }

// AddTrack appends t unless it is already present.
func (s *Stream) AddTrack(t *Track) {
	s.mu.Lock()
	for _, existing := range s.tracks {
		if existing == t {
			s.mu.Unlock()
			return
		}
	}
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()

	go s.watch(t)
}

func (s *Stream) watch(t *Track) {
	select {
	case <-t.Flowing():
		if t.Live() {
			s.liveOnce.Do(func() { close(s.live) })
		}
	case <-t.Done():
	}
}

// Live is closed once any track of the stream is live with data flowing.
func (s *Stream) Live() <-chan struct{} { return s.live }

func (s *Stream) Tracks() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) tracksOf(kind webrtc.RTPCodecType) []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Track
	for _, t := range s.tracks {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (s *Stream) AudioTracks() []*Track { return s.tracksOf(webrtc.RTPCodecTypeAudio) }
func (s *Stream) VideoTracks() []*Track { return s.tracksOf(webrtc.RTPCodecTypeVideo) }

// LiveTracks counts tracks that have not ended.
func (s *Stream) LiveTracks() int {
	n := 0
	for _, t := range s.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}

// Stop ends every track in the stream.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
