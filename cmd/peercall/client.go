package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/peercall/internal/adapters/rtc"
	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/call"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

type client struct {
	cfg       *config.Config
	transport *signal.HTTPTransport
	factory   *call.Factory
	out       io.Writer
}

func newClient(cfg *config.Config, out io.Writer) (*client, error) {
	if cfg.Client.Token == "" {
		return nil, errors.New("no token: run `peercall token <user>` and pass --token or set PEERCALL_CLIENT_TOKEN")
	}
	transport := signal.NewHTTPTransport(cfg.Client.ServerURL, cfg.Client.Token, cfg.Client.RequestTimeout)
	peers := rtc.NewFactory(rtc.Config{STUNServers: cfg.Client.STUNServers, MDNS: cfg.Client.MDNS})
	return &client{
		cfg:       cfg,
		transport: transport,
		factory: &call.Factory{
			Transport: transport,
			Peers:     peers,
			Devices:   media.SyntheticDevices{Microphone: true, Camera: true, Screen: true},
			Config: call.Config{
				PollInterval:   cfg.Client.PollInterval,
				ConnectTimeout: cfg.Client.ConnectTimeout,
			},
		},
		out: out,
	}, nil
}

func (c *client) printState(state domain.ConnectionState, err error) {
	style := dimStyle
	switch state {
	case domain.StateConnected:
		style = okStyle
	case domain.StateFailed:
		style = badStyle
	case domain.StateEnded:
		style = warnStyle
	}
	line := style.Render(state.String())
	if err != nil {
		line += " " + dimStyle.Render(err.Error())
	}
	fmt.Fprintln(c.out, line)
}

// watchEvents wakes wake() on every mailbox event until ctx is done.
func (c *client) watchEvents(ctx context.Context, wake func(app.Event)) {
	stream, err := signal.NewEventStream(c.cfg.Client.ServerURL, c.cfg.Client.Token)
	if err != nil {
		log.Warn().Err(err).Msg("event stream disabled, polling only")
		return
	}
	go func() {
		_ = stream.Run(ctx, wake)
	}()
}

// hold keeps a connected session up until it ends, ctx is done or d elapses
// (d <= 0 means no limit), printing remote media stats every few seconds.
func (c *client) hold(ctx context.Context, s *call.Session, d time.Duration) {
	var limit <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		limit = timer.C
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		if s.State().Terminal() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-limit:
			return
		case <-ticker.C:
			for _, t := range s.RemoteStream().Tracks() {
				packets, bytes := t.Stats()
				fmt.Fprintln(c.out, dimStyle.Render(fmt.Sprintf("%s %s: %d packets, %d bytes", t.Kind(), t.ID(), packets, bytes)))
			}
		}
	}
}
