package call

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

var (
	testOffer  = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
)

func cand(s string) webrtc.ICECandidateInit {
	mid := "0"
	idx := uint16(0)
	return webrtc.ICECandidateInit{Candidate: s, SDPMid: &mid, SDPMLineIndex: &idx}
}

// fakeTransport is an in-memory mailbox with knobs for failures.
type fakeTransport struct {
	mu sync.Mutex

	callID   domain.CallID
	offerErr error
	// offerStarted is closed when SendOffer is entered; offerGate blocks it.
	offerStarted chan struct{}
	offerGate    chan struct{}

	answerErr     error
	answer        *webrtc.SessionDescription
	pollAnswerErr error

	candResponses [][]webrtc.ICECandidateInit
	candErrs      []error
	candGate      chan struct{}

	endErr error

	offersTo       []domain.UserID
	sentAnswers    map[domain.CallID]webrtc.SessionDescription
	sentCandidates []webrtc.ICECandidateInit
	sentCandIDs    []domain.CallID
	ended          []domain.CallID
	answerPolls    int
	candPolls      int
	inflight       int
	maxInflight    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{callID: "c1", sentAnswers: make(map[domain.CallID]webrtc.SessionDescription)}
}

func (f *fakeTransport) SendOffer(ctx context.Context, to domain.UserID, kind domain.MediaKind, offer webrtc.SessionDescription) (domain.CallID, error) {
	f.mu.Lock()
	started, gate := f.offerStarted, f.offerGate
	f.offersTo = append(f.offersTo, to)
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return "", f.offerErr
	}
	return f.callID, nil
}

func (f *fakeTransport) SendAnswer(ctx context.Context, id domain.CallID, answer webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.sentAnswers[id] = answer
	return nil
}

func (f *fakeTransport) PollAnswer(ctx context.Context, id domain.CallID) (*webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerPolls++
	if f.pollAnswerErr != nil {
		return nil, f.pollAnswerErr
	}
	if f.answer == nil {
		return nil, nil
	}
	a := *f.answer
	return &a, nil
}

func (f *fakeTransport) SendCandidate(ctx context.Context, id domain.CallID, c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentCandidates = append(f.sentCandidates, c)
	f.sentCandIDs = append(f.sentCandIDs, id)
	return nil
}

func (f *fakeTransport) PollCandidates(ctx context.Context, id domain.CallID) ([]webrtc.ICECandidateInit, error) {
	f.mu.Lock()
	if err := ctx.Err(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.candPolls++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	gate := f.candGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if len(f.candErrs) > 0 {
		err := f.candErrs[0]
		f.candErrs = f.candErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.candResponses) == 0 {
		return nil, nil
	}
	resp := f.candResponses[0]
	f.candResponses = f.candResponses[1:]
	return resp, nil
}

func (f *fakeTransport) EndCall(ctx context.Context, id domain.CallID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return f.endErr
}

type transportSnapshot struct {
	offersTo       []domain.UserID
	sentCandidates []webrtc.ICECandidateInit
	sentCandIDs    []domain.CallID
	ended          []domain.CallID
	answerPolls    int
	candPolls      int
	maxInflight    int
}

func (f *fakeTransport) snapshot() transportSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transportSnapshot{
		offersTo:       append([]domain.UserID(nil), f.offersTo...),
		sentCandidates: append([]webrtc.ICECandidateInit(nil), f.sentCandidates...),
		sentCandIDs:    append([]domain.CallID(nil), f.sentCandIDs...),
		ended:          append([]domain.CallID(nil), f.ended...),
		answerPolls:    f.answerPolls,
		candPolls:      f.candPolls,
		maxInflight:    f.maxInflight,
	}
}

func (f *fakeTransport) setAnswer(a *webrtc.SessionDescription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = a
}

func (f *fakeTransport) pushCandidates(cs ...webrtc.ICECandidateInit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candResponses = append(f.candResponses, cs)
}

// packetReader yields one packet, then blocks until the peer closes.
type packetReader struct {
	mu   sync.Mutex
	sent bool
	stop chan struct{}
}

func (r *packetReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	r.mu.Lock()
	if !r.sent {
		r.sent = true
		r.mu.Unlock()
		return &rtp.Packet{Payload: []byte{0xf8}}, nil, nil
	}
	r.mu.Unlock()
	<-r.stop
	return nil, nil, io.EOF
}

type fakeSender struct {
	mu       sync.Mutex
	track    *media.Track
	replaced []*media.Track
	err      error
}

func (s *fakeSender) ReplaceTrack(t *media.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.track = t
	s.replaced = append(s.replaced, t)
	return nil
}

func (s *fakeSender) Track() *media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

type fakePeer struct {
	mu sync.Mutex

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(*media.Track)
	onState func(webrtc.PeerConnectionState)

	senders          []*fakeSender
	remote           *webrtc.SessionDescription
	applyAnswerCalls int
	added            []webrtc.ICECandidateInit
	closed           bool
	stop             chan struct{}

	offerErr error
	// trackOnOffer emits a flowing remote track right after the offer.
	trackOnOffer bool
}

func newFakePeer() *fakePeer {
	return &fakePeer{stop: make(chan struct{})}
}

func (p *fakePeer) AddLocalTrack(t *media.Track) (core.RTPSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSender{track: t}
	p.senders = append(p.senders, s)
	return s, nil
}

func (p *fakePeer) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	p.mu.Lock()
	err, auto := p.offerErr, p.trackOnOffer
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if auto {
		go p.emitTrack(webrtc.RTPCodecTypeAudio)
	}
	o := testOffer
	return &o, nil
}

func (p *fakePeer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("closed")
	}
	p.remote = &offer
	a := testAnswer
	return &a, nil
}

func (p *fakePeer) ApplyAnswer(answer webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("closed")
	}
	p.applyAnswerCalls++
	p.remote = &answer
	return nil
}

func (p *fakePeer) HasRemoteDescription() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote != nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("no remote description")
	}
	p.added = append(p.added, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

func (p *fakePeer) OnTrack(fn func(*media.Track)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *fakePeer) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	return nil
}

func (p *fakePeer) emitICE(c webrtc.ICECandidateInit) {
	p.mu.Lock()
	fn := p.onICE
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *fakePeer) emitTrack(kind webrtc.RTPCodecType) *media.Track {
	p.mu.Lock()
	fn, stop := p.onTrack, p.stop
	p.mu.Unlock()
	t := media.NewRemoteTrack(&packetReader{stop: stop}, kind, "remote-"+kind.String())
	if fn != nil {
		fn(t)
	}
	return t
}

func (p *fakePeer) emitState(st webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) addedCandidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.added...)
}

func (p *fakePeer) answerCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyAnswerCalls
}

type fakePeers struct {
	mu      sync.Mutex
	err     error
	created []*fakePeer
	// prepare customizes the n-th peer (1-based) before it is handed out.
	prepare func(n int, p *fakePeer)
}

func (f *fakePeers) NewPeerConnection() (core.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := newFakePeer()
	f.created = append(f.created, p)
	if f.prepare != nil {
		f.prepare(len(f.created), p)
	}
	return p, nil
}

func (f *fakePeers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakePeers) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}
