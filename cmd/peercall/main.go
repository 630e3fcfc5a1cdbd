package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/peercall/internal/config"
)

type globalFlags struct {
	server string
	token  string
	debug  bool
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.server != "" {
		cfg.Client.ServerURL = g.server
	}
	if g.token != "" {
		cfg.Client.Token = g.token
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "peercall",
		Short: "Peer-to-peer audio/video calls over a polled signaling mailbox",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&g.server, "server", "", "Signaling server URL (overrides client.server_url)")
	cmd.PersistentFlags().StringVar(&g.token, "token", "", "Bearer token (overrides client.token)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Verbose logging")

	cmd.AddCommand(newCallCmd(g))
	cmd.AddCommand(newListenCmd(g))
	cmd.AddCommand(newTokenCmd(g))
	return cmd
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}
