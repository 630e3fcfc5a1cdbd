// Package call implements a two-party call session: local capture,
// offer/answer over a polled signaling mailbox, trickle ICE and teardown.
package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval   time.Duration
	ConnectTimeout time.Duration
	// NotifyTimeout bounds the best-effort end-of-call notification.
	NotifyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Second,
		ConnectTimeout: 30 * time.Second,
		NotifyTimeout:  5 * time.Second,
	}
}

// StateFunc observes state changes. err is set for failures and remote hang-ups.
type StateFunc func(state domain.ConnectionState, err error)

// attempt holds everything that belongs to one call attempt.
// All fields are guarded by Session.mu.
type attempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	role   domain.Role
	kind   domain.MediaKind
	callID domain.CallID
	pc     core.PeerConnection
	closed bool

	answerApplied bool
	remoteReady   bool

	pendingLocal  []webrtc.ICECandidateInit
	sentLocal     map[string]struct{}
	pendingRemote []webrtc.ICECandidateInit
	seenRemote    map[string]struct{}

	polling atomic.Bool
}

// Session owns one call's lifecycle. Build one per call with a Factory.
type Session struct {
	id        string
	transport core.SignalingTransport
	peers     core.PeerFactory
	devices   media.Devices
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex
	att     *attempt
	state   domain.ConnectionState
	err     error
	changed chan struct{}
	onState StateFunc

	local       *media.Stream
	remote      *media.Stream
	videoSender core.RTPSender
	camera      *media.Track
	screen      *media.Track

	wake chan struct{}

	// sendMu keeps local candidates in discovery order across the flush.
	sendMu sync.Mutex
	// negMu serializes remote description and remote candidate application.
	negMu sync.Mutex
}

func NewSession(transport core.SignalingTransport, peers core.PeerFactory, devices media.Devices, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		transport: transport,
		peers:     peers,
		devices:   devices,
		cfg:       cfg,
		logger:    log.With().Str("module", "call").Str("session", id).Logger(),
		changed:   make(chan struct{}),
		remote:    media.NewStream(),
		wake:      make(chan struct{}, 1),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the reason of a failure or remote hang-up.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) CallID() domain.CallID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att == nil {
		return ""
	}
	return s.att.callID
}

func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att == nil {
		return ""
	}
	return s.att.role
}

func (s *Session) Kind() domain.MediaKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att == nil {
		return ""
	}
	return s.att.kind
}

// LocalStream is nil until capture succeeds and after teardown.
func (s *Session) LocalStream() *media.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// RemoteStream is stable for the whole call; tracks are only appended.
func (s *Session) RemoteStream() *media.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

func (s *Session) OnStateChange(fn StateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Wait blocks until the call is connected, has ended or failed, or ctx is done.
func (s *Session) Wait(ctx context.Context) (domain.ConnectionState, error) {
	for {
		s.mu.Lock()
		state, err, ch := s.state, s.err, s.changed
		s.mu.Unlock()
		if state == domain.StateConnected || state.Terminal() {
			return state, err
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Wake triggers an immediate poll instead of waiting for the next tick.
func (s *Session) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// live reports whether att is the current, not torn down attempt. Caller holds mu.
func (s *Session) live(att *attempt) bool {
	return att != nil && s.att == att && !att.closed
}

// begin starts a new attempt. Only idle or finished sessions accept one.
func (s *Session) begin(role domain.Role, kind domain.MediaKind, id domain.CallID) (*attempt, error) {
	s.mu.Lock()
	if s.state != domain.StateIdle && !s.state.Terminal() {
		s.mu.Unlock()
		return nil, ErrCallInProgress
	}
	ctx, cancel := context.WithCancel(context.Background())
	att := &attempt{
		ctx:        ctx,
		cancel:     cancel,
		role:       role,
		kind:       kind,
		callID:     id,
		sentLocal:  make(map[string]struct{}),
		seenRemote: make(map[string]struct{}),
	}
	s.att = att
	s.state = domain.StateIdle
	s.err = nil
	fn, ok := s.transitionLocked(att, domain.StateAcquiringMedia, nil)
	s.mu.Unlock()

	s.logger.Info().Str("role", string(role)).Str("kind", string(kind)).Msg("call attempt started")
	s.notify(ok, fn, domain.StateAcquiringMedia, nil)
	return att, nil
}

func (s *Session) transitionLocked(att *attempt, next domain.ConnectionState, err error) (StateFunc, bool) {
	if att != nil && s.att != att {
		return nil, false
	}
	if !s.state.CanTransition(next) {
		return nil, false
	}
	s.state = next
	if err != nil {
		s.err = err
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return s.onState, true
}

func (s *Session) transition(att *attempt, next domain.ConnectionState, err error) bool {
	s.mu.Lock()
	fn, ok := s.transitionLocked(att, next, err)
	s.mu.Unlock()
	s.notify(ok, fn, next, err)
	return ok
}

func (s *Session) notify(ok bool, fn StateFunc, state domain.ConnectionState, err error) {
	if !ok {
		return
	}
	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Warn().Err(err)
	}
	ev.Str("state", state.String()).Msg("state changed")
	if fn != nil {
		fn(state, err)
	}
}
