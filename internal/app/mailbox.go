package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrCallNotFound    = errors.New("call not found")
	ErrNotParticipant  = errors.New("not a participant of this call")
	ErrCallEnded       = errors.New("call ended")
	ErrAlreadyAnswered = errors.New("call already answered")
	ErrSelfCall        = errors.New("cannot call yourself")
	ErrEmptyOffer      = errors.New("empty session description")
)

// Call is the mailbox record of one call.
type Call struct {
	ID        domain.CallID
	From      domain.UserID
	To        domain.UserID
	Kind      domain.MediaKind
	Offer     webrtc.SessionDescription
	Answer    *webrtc.SessionDescription
	CreatedAt time.Time
	// SeenAt is the last request a participant made for this call.
	SeenAt  time.Time
	Ended   bool
	EndedAt time.Time
	EndedBy domain.UserID

	// candidates queued for each recipient
	candidates map[domain.UserID][]webrtc.ICECandidateInit
}

// stale reports whether a live call should be expired. Ringing is bounded by
// age; a call in progress only by silence, since both sides keep polling.
func (c *Call) stale(now time.Time, ttl time.Duration) bool {
	if c.Answer == nil {
		return now.Sub(c.CreatedAt) > ttl
	}
	return now.Sub(c.SeenAt) > ttl
}

func (c *Call) participant(u domain.UserID) bool { return u == c.From || u == c.To }

func (c *Call) peerOf(u domain.UserID) domain.UserID {
	if u == c.From {
		return c.To
	}
	return c.From
}

// snapshot copies the exported fields; queues stay private.
func (c *Call) snapshot() Call {
	out := *c
	out.candidates = nil
	if c.Answer != nil {
		a := *c.Answer
		out.Answer = &a
	}
	return out
}

// Notifier receives mailbox events addressed to a user.
type Notifier interface {
	Notify(to domain.UserID, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.UserID, Event) {}

// Mailbox keeps offers, answers and per-recipient candidate queues.
// Ended calls stay readable (as ErrCallEnded) until swept.
type Mailbox struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*Call

	ttl      time.Duration
	notifier Notifier
	now      func() time.Time
}

func NewMailbox(ttl time.Duration, notifier Notifier) *Mailbox {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Mailbox{
		calls:    make(map[domain.CallID]*Call),
		ttl:      ttl,
		notifier: notifier,
		now:      time.Now,
	}
}

// get returns the call if u may see it. Caller holds mu.
func (m *Mailbox) get(id domain.CallID, u domain.UserID) (*Call, error) {
	c, ok := m.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	if !c.participant(u) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

func (m *Mailbox) CreateCall(from, to domain.UserID, kind domain.MediaKind, offer webrtc.SessionDescription) (domain.CallID, error) {
	if from == to {
		return "", ErrSelfCall
	}
	if !kind.Valid() {
		return "", domain.ErrUnknownMediaKind
	}
	if offer.SDP == "" {
		return "", ErrEmptyOffer
	}

	id := domain.CallID(uuid.NewString())
	now := m.now()
	m.mu.Lock()
	m.calls[id] = &Call{
		ID:         id,
		From:       from,
		To:         to,
		Kind:       kind,
		Offer:      offer,
		CreatedAt:  now,
		SeenAt:     now,
		candidates: make(map[domain.UserID][]webrtc.ICECandidateInit),
	}
	m.mu.Unlock()

	log.Info().Str("module", "app.mailbox").Str("call_id", id.String()).Str("from", from.String()).Str("to", to.String()).Str("kind", string(kind)).Msg("call created")
	m.notifier.Notify(to, Event{Type: EventOffer, CallID: id, From: from})
	return id, nil
}

// Answer stores the callee's answer. Only the callee may answer, once.
func (m *Mailbox) Answer(u domain.UserID, id domain.CallID, answer webrtc.SessionDescription) error {
	if answer.SDP == "" {
		return ErrEmptyOffer
	}
	m.mu.Lock()
	c, err := m.get(id, u)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if u != c.To {
		m.mu.Unlock()
		return ErrNotParticipant
	}
	if c.Ended {
		m.mu.Unlock()
		return ErrCallEnded
	}
	if c.Answer != nil {
		m.mu.Unlock()
		return ErrAlreadyAnswered
	}
	c.Answer = &answer
	c.SeenAt = m.now()
	caller := c.From
	m.mu.Unlock()

	log.Info().Str("module", "app.mailbox").Str("call_id", id.String()).Msg("call answered")
	m.notifier.Notify(caller, Event{Type: EventAnswer, CallID: id, From: u})
	return nil
}

// PollAnswer returns nil while the callee has not answered yet.
func (m *Mailbox) PollAnswer(u domain.UserID, id domain.CallID) (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id, u)
	if err != nil {
		return nil, err
	}
	if c.Ended {
		return nil, ErrCallEnded
	}
	c.SeenAt = m.now()
	if c.Answer == nil {
		return nil, nil
	}
	a := *c.Answer
	return &a, nil
}

// PushCandidate queues c for the other participant.
func (m *Mailbox) PushCandidate(u domain.UserID, id domain.CallID, cand webrtc.ICECandidateInit) error {
	m.mu.Lock()
	c, err := m.get(id, u)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if c.Ended {
		m.mu.Unlock()
		return ErrCallEnded
	}
	c.SeenAt = m.now()
	to := c.peerOf(u)
	c.candidates[to] = append(c.candidates[to], cand)
	m.mu.Unlock()

	m.notifier.Notify(to, Event{Type: EventCandidate, CallID: id, From: u})
	return nil
}

// DrainCandidates returns and clears the candidates queued for u.
func (m *Mailbox) DrainCandidates(u domain.UserID, id domain.CallID) ([]webrtc.ICECandidateInit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id, u)
	if err != nil {
		return nil, err
	}
	if c.Ended {
		return nil, ErrCallEnded
	}
	c.SeenAt = m.now()
	out := c.candidates[u]
	delete(c.candidates, u)
	if out == nil {
		out = []webrtc.ICECandidateInit{}
	}
	return out, nil
}

// End marks the call ended. Ending an ended call is a no-op.
func (m *Mailbox) End(u domain.UserID, id domain.CallID) error {
	m.mu.Lock()
	c, err := m.get(id, u)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if c.Ended {
		m.mu.Unlock()
		return nil
	}
	c.Ended = true
	c.EndedAt = m.now()
	c.EndedBy = u
	c.candidates = make(map[domain.UserID][]webrtc.ICECandidateInit)
	peer := c.peerOf(u)
	m.mu.Unlock()

	log.Info().Str("module", "app.mailbox").Str("call_id", id.String()).Str("by", u.String()).Msg("call ended")
	m.notifier.Notify(peer, Event{Type: EventEnded, CallID: id, From: u})
	return nil
}

// Incoming lists unanswered, live calls addressed to u, oldest first.
func (m *Mailbox) Incoming(u domain.UserID) []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, 0)
	for _, c := range m.calls {
		if c.To == u && !c.Ended && c.Answer == nil {
			out = append(out, c.snapshot())
		}
	}
	sortByCreated(out)
	return out
}

// Get returns a copy of the call record.
func (m *Mailbox) Get(u domain.UserID, id domain.CallID) (Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(id, u)
	if err != nil {
		return Call{}, err
	}
	return c.snapshot(), nil
}

type SweepResult struct {
	Expired int
	Removed int
	Active  int
}

// Sweep ends unanswered calls older than the TTL and answered calls nobody
// has polled for longer than the TTL, and forgets calls that have been ended
// for longer than the TTL.
func (m *Mailbox) Sweep() SweepResult {
	now := m.now()
	var res SweepResult
	type notice struct {
		to domain.UserID
		ev Event
	}
	var notices []notice

	m.mu.Lock()
	for id, c := range m.calls {
		switch {
		case c.Ended && now.Sub(c.EndedAt) > m.ttl:
			delete(m.calls, id)
			res.Removed++
		case !c.Ended && c.stale(now, m.ttl):
			c.Ended = true
			c.EndedAt = now
			c.candidates = make(map[domain.UserID][]webrtc.ICECandidateInit)
			res.Expired++
			for _, u := range []domain.UserID{c.From, c.To} {
				notices = append(notices, notice{to: u, ev: Event{Type: EventEnded, CallID: id}})
			}
		}
	}
	for _, c := range m.calls {
		if !c.Ended {
			res.Active++
		}
	}
	m.mu.Unlock()

	for _, n := range notices {
		m.notifier.Notify(n.to, n.ev)
	}
	if res.Expired > 0 || res.Removed > 0 {
		log.Info().Str("module", "app.mailbox").Int("expired", res.Expired).Int("removed", res.Removed).Int("active", res.Active).Msg("sweep")
	}
	return res
}

// Run sweeps every interval until ctx is done.
func (m *Mailbox) Run(ctx context.Context, interval time.Duration, observe func(SweepResult)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.mailbox").Msg("sweeper stopped")
			return
		case <-ticker.C:
			res := m.Sweep()
			if observe != nil {
				observe(res)
			}
		}
	}
}
