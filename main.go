package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wikirag/internal/app"
	"wikirag/internal/config"
	"wikirag/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "wikirag",
		Short:        "Retrieval-augmented assistant over a MediaWiki knowledge base",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// Logs go to stderr so command output stays machine readable.
			slog.SetDefault(logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel))
			c.cfg = cfg
			return nil
		},
	}

	root.SetOut(os.Stdout)
	root.AddCommand(
		c.newServeCmd(),
		c.newCrawlCmd(),
		c.newSearchCmd(),
		c.newAskCmd(),
	)
	return root
}

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			}, app.WithStoreHeal())
		},
	}
}

// withApp bootstraps dependencies, builds the app and tears both down after
// fn returns. ctx is cancelled on SIGINT or SIGTERM.
func (c *cli) withApp(parent context.Context, fn func(context.Context, *app.App) error, opts ...app.Option) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, c.cfg, opts...)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Warn("failed to close dependencies", "error", err)
		}
	}()

	a, err := app.New(ctx, c.cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	return fn(ctx, a)
}
