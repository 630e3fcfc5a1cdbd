package app

import (
	"errors"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Subscription is one event stream of one user, e.g. a websocket.
type Subscription struct {
	user   domain.UserID
	hub    *Hub
	events chan Event
	closed bool
}

func (s *Subscription) User() domain.UserID  { return s.user }
func (s *Subscription) Events() <-chan Event { return s.events }

// trySend queues ev without blocking. Caller holds hub.mu.
func (s *Subscription) trySend(ev Event) error {
	if s.closed {
		return errors.New("subscription closed")
	}
	select {
	case s.events <- ev:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close unsubscribes and closes the event channel. Safe to call twice.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans mailbox events out to the subscriptions of each user.
type Hub struct {
	mu     sync.RWMutex
	subs   map[domain.UserID]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		subs:   make(map[domain.UserID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(u domain.UserID) *Subscription {
	s := &Subscription{user: u, hub: h, events: make(chan Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[u]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[u] = set
	}
	set[s] = struct{}{}
	log.Info().Str("module", "app.hub").Str("user", u.String()).Int("subscribers", len(set)).Msg("subscribed")
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	if set, ok := h.subs[s.user]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.user)
		}
	}
	log.Info().Str("module", "app.hub").Str("user", s.user.String()).Msg("unsubscribed")
}

// Notify implements Notifier. Slow subscribers lose events; the next poll
// still picks the change up.
func (h *Hub) Notify(to domain.UserID, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[to] {
		if err := s.trySend(ev); err != nil {
			log.Warn().Err(err).Str("module", "app.hub").Str("user", to.String()).Str("type", string(ev.Type)).Msg("event dropped")
		}
	}
}

func (h *Hub) Subscribers(u domain.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[u])
}
