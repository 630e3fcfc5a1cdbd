package app

import (
	"sort"

	"github.com/dkeye/peercall/internal/domain"
)

type EventType string

const (
	EventOffer     EventType = "offer"
	EventAnswer    EventType = "answer"
	EventCandidate EventType = "candidate"
	EventEnded     EventType = "ended"
)

// Event tells a user that something in the mailbox changed for them.
// It carries no payload; clients still poll.
type Event struct {
	Type   EventType     `json:"type"`
	CallID domain.CallID `json:"callId"`
	From   domain.UserID `json:"from,omitempty"`
}

func sortByCreated(calls []Call) {
	sort.Slice(calls, func(i, j int) bool { return calls[i].CreatedAt.Before(calls[j].CreatedAt) })
}
