package signal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/peercall/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// EventStream follows /api/ws/events and reconnects with backoff.
// Events are wake-up hints; missing one only delays the next poll.
type EventStream struct {
	url    string
	Dialer *websocket.Dialer
	// MaxInterval caps the reconnect backoff.
	MaxInterval time.Duration
}

func NewEventStream(baseURL, token string) (*EventStream, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/ws/events"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return &EventStream{
		url:         u.String(),
		Dialer:      websocket.DefaultDialer,
		MaxInterval: 30 * time.Second,
	}, nil
}

// Run delivers events to fn until ctx is done.
func (s *EventStream) Run(ctx context.Context, fn func(app.Event)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = s.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		connected, err := s.session(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		log.Warn().Err(err).Str("module", "signal.events").Dur("retry_in", wait).Msg("event stream disconnected")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (s *EventStream) session(ctx context.Context, fn func(app.Event)) (connected bool, err error) {
	ws, _, err := s.Dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	log.Info().Str("module", "signal.events").Msg("event stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = ws.Close()
		case <-done:
			_ = ws.Close()
		}
	}()

	for {
		var ev app.Event
		if err := ws.ReadJSON(&ev); err != nil {
			return true, err
		}
		fn(ev)
	}
}
