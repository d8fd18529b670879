package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/qabot/internal/channels/slack"
	"github.com/nextlevelbuilder/qabot/internal/config"
	"github.com/nextlevelbuilder/qabot/internal/handler"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
	"github.com/nextlevelbuilder/qabot/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

// openStore is replaced in tests.
var openStore = openDedupStore

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack responder (default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// runServe is the single exit point for serve, so deferred cleanup in serve
// (dedup store, tracing) always runs before the process exits.
func runServe() {
	setupLogging("text")
	if err := serve(); err != nil {
		slog.Error("qabot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("qabot stopped")
}

func serve() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	setupLogging(cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	kb := knowledge.LoadOrEmpty(cfg.Knowledge.Path)
	if dups := kb.Duplicates(); len(dups) > 0 {
		slog.Warn("knowledge base has duplicate questions, first entry wins", "count", len(dups))
	}
	if cfg.Reply.Contact == "" && cfg.Reply.ProjectURL == "" {
		slog.Warn("reply.contact and reply.project_url are empty, replies will use a generic maintainer pointer")
	}
	if cfg.Knowledge.SourceURL == "" {
		slog.Warn("knowledge.source_url is empty, not-found replies will name the knowledge base file")
	}

	seen, err := openStore(cfg.Dedup)
	if err != nil {
		return fmt.Errorf("open dedup store %s: %w", cfg.Dedup.Backend, err)
	}
	defer func() {
		if err := seen.Close(); err != nil {
			slog.Warn("dedup store close", "error", err)
		}
	}()

	client := slack.NewClient(nil, cfg.Slack.APIBase, cfg.Slack.BotToken, cfg.Slack.AppToken)
	botUserID, err := resolveBotUserID(ctx, cfg.Slack, client)
	if err != nil {
		return fmt.Errorf("initialize slack client: %w", err)
	}

	h := handler.New(handler.Config{
		Channels:  cfg.MonitoredChannels(),
		BotUserID: botUserID,
	}, seen, buildResolver(cfg, kb), buildFormatter(cfg), client)

	ch := slack.New(cfg.Slack, client, h.OnMessage)
	if err := ch.Start(ctx); err != nil {
		return fmt.Errorf("start slack channel: %w", err)
	}
	slog.Info("qabot started",
		"version", Version,
		"mode", cfg.Slack.ConnectionMode,
		"channels", cfg.MonitoredChannels(),
		"knowledge_entries", kb.Len(),
		"dedup", cfg.Dedup.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-ch.Err():
			return err
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ch.Stop(shutdownCtx); err != nil {
			slog.Warn("slack channel stop", "error", err)
		}
		return nil
	})
	return g.Wait()
}
