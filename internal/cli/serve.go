package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"parley/internal/gateway"
	websock "parley/internal/gateway/websocket"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Parley gateway server",
		Long: `Start the Parley gateway server.

The gateway exposes the chat API (blocking and SSE streaming), session
and history endpoints, and a WebSocket channel for session update
notifications. Configuration changes are picked up without a restart.`,
		Example: `  # Start with the default configuration
  parley serve

  # Start on a custom port
  parley serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}

	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	hub := websock.NewHub()

	srv, err := gateway.NewServer(cfg, hub, db, Version)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if watcher, err := gateway.NewWatcher(cliCtx.ConfigPath); err != nil {
		log.Warn().Err(err).Msg("Config hot reload unavailable")
	} else if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Config hot reload unavailable")
	} else {
		srv.SetWatcher(watcher)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)).
		Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
