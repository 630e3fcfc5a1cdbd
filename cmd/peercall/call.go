package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/call"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
)

type callFlags struct {
	video    bool
	redial   bool
	duration time.Duration
	share    time.Duration
}

func newCallCmd(g *globalFlags) *cobra.Command {
	f := &callFlags{}
	cmd := &cobra.Command{
		Use:   "call <user>",
		Short: "Call a user and stay connected until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.NewUserID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			c, err := newClient(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return c.runCall(cmd.Context(), to, f)
		},
	}
	cmd.Flags().BoolVar(&f.video, "video", false, "Place a video call instead of audio only")
	cmd.Flags().BoolVar(&f.redial, "redial", false, "Redial with backoff when the connection times out")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "Hang up after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&f.share, "share", 0, "Share the screen for this long once connected (video calls)")
	return cmd
}

func (c *client) runCall(ctx context.Context, to domain.UserID, f *callFlags) error {
	kind := domain.MediaAudio
	if f.video {
		kind = domain.MediaVideo
	}

	var s *call.Session
	if f.redial {
		var current atomic.Pointer[call.Session]
		c.watchEvents(ctx, func(app.Event) {
			if cur := current.Load(); cur != nil {
				cur.Wake()
			}
		})
		policy := call.DefaultRedialPolicy()
		policy.Prepare = func(n int, next *call.Session) {
			if n > 1 {
				log.Info().Int("attempt", n).Str("to", to.String()).Msg("redialing")
			}
			next.OnStateChange(c.printState)
			current.Store(next)
		}
		var err error
		s, err = call.Redial(ctx, c.factory, to, kind, policy)
		if err != nil {
			return err
		}
	} else {
		s = c.factory.New()
		s.OnStateChange(c.printState)
		c.watchEvents(ctx, func(app.Event) { s.Wake() })

		id, err := s.StartCall(ctx, to, kind)
		if err != nil {
			return err
		}
		log.Info().Str("call_id", id.String()).Str("to", to.String()).Msg("ringing")

		if _, err := s.Wait(ctx); err != nil {
			s.EndCall(context.Background())
			return err
		}
	}
	defer s.EndCall(context.Background())

	if s.State() != domain.StateConnected {
		return s.Err()
	}
	if f.share > 0 && kind.HasVideo() {
		c.shareScreen(ctx, s, f.share)
	}
	c.hold(ctx, s, f.duration)
	return nil
}

// shareScreen swaps the outgoing video for a screen capture and stops it
// after d; the session falls back to the camera on its own.
func (c *client) shareScreen(ctx context.Context, s *call.Session, d time.Duration) {
	capturer, ok := c.factory.Devices.(media.DisplayCapturer)
	if !ok {
		log.Warn().Msg("screen capture not supported by these devices")
		return
	}
	screen, err := capturer.GetDisplayMedia(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("screen capture failed")
		return
	}
	if err := s.ReplaceVideoTrack(screen); err != nil {
		screen.Stop()
		log.Warn().Err(err).Msg("screen share failed")
		return
	}
	fmt.Fprintln(c.out, warnStyle.Render("sharing screen"))
	time.AfterFunc(d, func() {
		screen.Stop()
		fmt.Fprintln(c.out, dimStyle.Render("screen share ended, camera restored"))
	})
}
