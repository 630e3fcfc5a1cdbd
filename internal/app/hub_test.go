package app

import (
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToUserOnly(t *testing.T) {
	h := NewHub(4)
	bob := h.Subscribe("bob")
	alice := h.Subscribe("alice")
	defer bob.Close()
	defer alice.Close()

	h.Notify("bob", Event{Type: EventOffer, CallID: "c1", From: "alice"})

	select {
	case ev := <-bob.Events():
		assert.Equal(t, EventOffer, ev.Type)
		assert.Equal(t, domain.CallID("c1"), ev.CallID)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	assert.Empty(t, alice.Events())
}

func TestHub_DropsOnBackpressure(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("bob")
	defer s.Close()

	h.Notify("bob", Event{Type: EventCandidate, CallID: "c1"})
	h.Notify("bob", Event{Type: EventCandidate, CallID: "c2"})

	ev := <-s.Events()
	assert.Equal(t, domain.CallID("c1"), ev.CallID)
	assert.Empty(t, s.Events())
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("bob")
	require.Equal(t, 1, h.Subscribers("bob"))

	s.Close()
	s.Close()
	assert.Zero(t, h.Subscribers("bob"))
	_, ok := <-s.Events()
	assert.False(t, ok)

	assert.NotPanics(t, func() { h.Notify("bob", Event{Type: EventEnded}) })
}

func TestHub_AsMailboxNotifier(t *testing.T) {
	h := NewHub(8)
	s := h.Subscribe("bob")
	defer s.Close()
	m := NewMailbox(time.Minute, h)

	id, err := m.CreateCall("alice", "bob", domain.MediaAudio, offer)
	require.NoError(t, err)
	ev := <-s.Events()
	assert.Equal(t, Event{Type: EventOffer, CallID: id, From: "alice"}, ev)
}
