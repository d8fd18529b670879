package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/qabot/internal/channels/slack"
	"github.com/nextlevelbuilder/qabot/internal/config"
	"github.com/nextlevelbuilder/qabot/internal/dedup"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
	"github.com/nextlevelbuilder/qabot/internal/providers"
	"github.com/nextlevelbuilder/qabot/internal/reply"
	"github.com/nextlevelbuilder/qabot/internal/resolver"
)

const authTestTimeout = 10 * time.Second

// buildResolver wires the knowledge base and, unless disabled, the LLM
// fallback into a Resolver.
func buildResolver(cfg *config.Config, kb *knowledge.Base) *resolver.Resolver {
	pc := cfg.Provider
	timeout := time.Duration(pc.TimeoutSec) * time.Second

	var gen resolver.Generator
	if pc.Disabled() {
		slog.Info("llm fallback disabled, answering from knowledge base only")
	} else {
		p := buildProvider(pc, timeout)
		g := resolver.NewLLMGenerator(p, pc.Model, pc.Sentinel)
		if pc.Temperature > 0 {
			g = g.WithTemperature(pc.Temperature)
		}
		gen = g
		slog.Info("llm fallback enabled", "provider", p.Name(), "model", p.DefaultModel(), "api_base", p.APIBase())
	}

	return resolver.New(kb, gen, resolver.Options{Timeout: timeout, Sentinel: pc.Sentinel})
}

type endpointProvider interface {
	providers.Provider
	APIBase() string
}

func buildProvider(pc config.ProviderConfig, timeout time.Duration) endpointProvider {
	if strings.EqualFold(pc.Name, config.ProviderAnthropic) {
		return providers.NewAnthropicProvider(pc.APIKey,
			providers.WithAnthropicModel(pc.Model),
			providers.WithAnthropicBaseURL(pc.APIBase),
			providers.WithAnthropicTimeout(timeout),
			providers.WithAnthropicRateLimit(pc.RateLimitRPM),
		)
	}
	return providers.NewOpenAIProvider(pc.Name, pc.APIKey, pc.APIBase, pc.Model).
		WithChatPath(pc.ChatPath).
		WithTimeout(timeout).
		WithRateLimit(pc.RateLimitRPM)
}

func buildFormatter(cfg *config.Config) reply.Formatter {
	f := reply.Formatter{
		Contact:      cfg.Reply.Contact,
		ProjectURL:   cfg.Reply.ProjectURL,
		KnowledgeURL: cfg.Knowledge.SourceURL,
	}
	// Base name only; the server's directory layout is not for users.
	if cfg.Knowledge.Path != "" {
		f.KnowledgeFile = filepath.Base(cfg.Knowledge.Path)
	}
	return f
}

// openDedupStore opens the configured seen-event store.
func openDedupStore(dc config.DedupConfig) (dedup.Store, error) {
	switch dc.Backend {
	case "", "memory":
		return dedup.NewMemoryStore(), nil
	case "sqlite":
		return dedup.OpenSQLite(dc.Path)
	case "postgres":
		return dedup.OpenPostgres(dc.DSN)
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", dc.Backend)
	}
}

// resolveBotUserID returns the configured bot user ID, or discovers it with
// auth.test.
func resolveBotUserID(ctx context.Context, sc config.SlackConfig, client *slack.Client) (string, error) {
	if sc.BotUserID != "" {
		slog.Info("using configured bot user id", "bot_user_id", sc.BotUserID)
		return sc.BotUserID, nil
	}
	ctx, cancel := context.WithTimeout(ctx, authTestTimeout)
	defer cancel()
	info, err := client.AuthTest(ctx)
	if err != nil {
		return "", fmt.Errorf("discover bot identity: %w", err)
	}
	slog.Info("bot initialized", "bot_user_id", info.UserID, "team", info.Team)
	return info.UserID, nil
}
