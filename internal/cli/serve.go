// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danhackerowner-jpg/gemini-bot/internal/config"
	"github.com/danhackerowner-jpg/gemini-bot/internal/logging"
	"github.com/danhackerowner-jpg/gemini-bot/internal/server"
)

// shutdownTimeout bounds the wait for in-flight proxy requests.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Gemini proxy server",
		Long: "Serve POST " + server.DefaultRoute + " so that clients (including\n" +
			"'gemini-bot' in proxy mode) can chat without holding the API key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			closer, err := logging.Init(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, newProxyServer(cfg))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+server.DefaultAddr+")")
	return cmd
}

// newProxyServer builds the proxy over a direct Gemini provider.
func newProxyServer(cfg *config.Config) *server.Server {
	return server.NewServer(server.Config{
		Addr:           cfg.Server.Addr,
		Route:          cfg.Server.Route,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, newDirectProvider(cfg))
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("proxy shutdown incomplete")
	}
	return <-errCh
}
