package cli

import (
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/agentflow/server"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Serve graph validation, compilation, storage and chat sessions over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDRESS)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddress = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := newDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	app := server.New(server.Dependencies{
		Store:              deps.Store,
		Sessions:           deps.Sessions,
		Redis:              deps.Redis,
		RateLimit:          cfg.RateLimit,
		RateWindow:         cfg.RateWindow,
		StrictConnectivity: cfg.StrictConnectivity,
	})

	log.Info().Str("addr", cfg.HTTPAddress).Str("generator", cfg.Generator).Msg("Starting agentflow server")
	if err := app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("agentflow server stopped")
	return nil
}
