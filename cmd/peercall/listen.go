package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/call"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

func newListenCmd(g *globalFlags) *cobra.Command {
	var (
		once     bool
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for incoming calls and answer them automatically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			c, err := newClient(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return c.listen(cmd.Context(), once, duration)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Exit after the first call")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Hang up each call after this long (0 = until the caller hangs up)")
	return cmd
}

func (c *client) listen(ctx context.Context, once bool, d time.Duration) error {
	wake := make(chan struct{}, 1)
	var current atomic.Pointer[call.Session]
	c.watchEvents(ctx, func(ev app.Event) {
		if ev.Type == app.EventOffer {
			select {
			case wake <- struct{}{}:
			default:
			}
			return
		}
		if s := current.Load(); s != nil {
			s.Wake()
		}
	})

	ticker := time.NewTicker(c.cfg.Client.PollInterval)
	defer ticker.Stop()
	log.Info().Str("server", c.cfg.Client.ServerURL).Msg("listening for calls")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-wake:
		}

		calls, err := c.transport.IncomingCalls(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("list incoming calls")
			continue
		}
		if len(calls) == 0 {
			continue
		}

		s := c.factory.New()
		current.Store(s)
		c.answer(ctx, s, calls[0], d)
		current.Store(nil)
		if once || ctx.Err() != nil {
			return nil
		}
	}
}

func (c *client) answer(ctx context.Context, s *call.Session, in core.IncomingCall, d time.Duration) {
	log.Info().Str("call_id", in.CallID.String()).Str("from", in.From.String()).Str("kind", string(in.Kind)).Msg("incoming call")
	s.OnStateChange(c.printState)

	if err := s.AnswerCall(ctx, in.CallID, in.Offer, in.Kind); err != nil {
		log.Error().Err(err).Str("call_id", in.CallID.String()).Msg("answer failed")
		return
	}
	defer s.EndCall(context.Background())

	state, err := s.Wait(ctx)
	if err != nil || state != domain.StateConnected {
		return
	}
	c.hold(ctx, s, d)
}
