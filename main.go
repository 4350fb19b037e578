package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/gamedle/internal/app"
	"github.com/robalobadob/gamedle/internal/auth"
	"github.com/robalobadob/gamedle/internal/config"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	root := config.NewCommand(cfg, version, serve)
	root.AddCommand(tokenCommand(cfg))
	cobra.CheckErr(root.Execute())
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	app.SetupLogging(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	return a.Run(ctx)
}

// tokenCommand mints a player token for local testing of the leaderboard.
func tokenCommand(cfg *config.Config) *cobra.Command {
	var (
		player string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed player token",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return fmt.Errorf("--jwt-secret (or GAMEDLE_JWT_SECRET) is required")
			}
			tok, exp, err := auth.SignToken(cfg.JWTSecret, player, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player id to embed as the subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

