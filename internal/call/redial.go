package call

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// RedialPolicy bounds automatic redials after ErrConnectionTimeout.
type RedialPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// MaxAttempts caps total dials; zero means only time bounds apply.
	MaxAttempts int
	// Prepare, when set, sees every fresh session before it dials.
	Prepare func(attempt int, s *Session)
}

func DefaultRedialPolicy() RedialPolicy {
	return RedialPolicy{
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  3 * time.Minute,
		MaxAttempts:     5,
	}
}

func (p RedialPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()
	return b
}

// Redial places a call and retries with exponential backoff while attempts
// time out. Any other outcome is returned as is. Each attempt uses a fresh
// session from f; the connected one is returned.
func Redial(ctx context.Context, f *Factory, to domain.UserID, kind domain.MediaKind, p RedialPolicy) (*Session, error) {
	b := p.backOff()
	for n := 1; ; n++ {
		s := f.New()
		if p.Prepare != nil {
			p.Prepare(n, s)
		}
		if _, err := s.StartCall(ctx, to, kind); err != nil {
			return nil, err
		}
		state, err := s.Wait(ctx)
		if state == domain.StateConnected {
			return s, nil
		}
		if ctx.Err() != nil {
			s.EndCall(context.Background())
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrConnectionTimeout) {
			return nil, err
		}
		if p.MaxAttempts > 0 && n >= p.MaxAttempts {
			return nil, err
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			return nil, err
		}
		log.Info().Str("module", "call.redial").Int("attempt", n).Dur("backoff", next).Msg("connection timed out, redialing")

		timer := time.NewTimer(next)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
