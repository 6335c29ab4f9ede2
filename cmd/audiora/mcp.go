package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/audiora/audiora/internal/app"
	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/observe"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Audiora tools over MCP on stdio",
		Long: `MCP exposes lyric lookup, vocabulary and pronunciation scoring as Model
Context Protocol tools on stdin/stdout. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			var level slog.LevelVar
			level.Set(cfg.Server.LogLevel.SlogLevel())
			slog.SetDefault(newLogger(os.Stderr, &level))

			reg := config.NewRegistry()
			registerBuiltinProviders(reg, observe.DefaultMetrics())
			providers, err := app.BuildProviders(cfg, reg)
			if err != nil {
				return fmt.Errorf("build providers: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			application, err := app.New(ctx, cfg, providers, app.WithLevelVar(&level), app.WithVersion(version))
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}
			defer func() {
				if err := application.Shutdown(context.Background()); err != nil {
					slog.Warn("shutdown error", "err", err)
				}
			}()

			srv, err := application.MCPServer(userID)
			if err != nil {
				return err
			}
			slog.Info("mcp server listening on stdio", "user", userID)
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local", "user whose vocabulary list the tools operate on")
	return cmd
}
