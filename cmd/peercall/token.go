package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	router "github.com/dkeye/peercall/internal/adapters/http"
	"github.com/dkeye/peercall/internal/domain"
)

func newTokenCmd(g *globalFlags) *cobra.Command {
	var (
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Mint a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := domain.NewUserID(args[0])
			if err != nil {
				return err
			}
			if secret == "" {
				cfg, err := loadConfig(g)
				if err != nil {
					return err
				}
				secret = cfg.Secret
			}
			if secret == "" {
				return errors.New("no secret configured, pass --secret")
			}
			tok, err := router.NewAuthenticator(secret).GenerateToken(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to the server secret from config)")
	return cmd
}
