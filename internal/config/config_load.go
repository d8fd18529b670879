package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Slack: SlackConfig{
			ConnectionMode: ModeWebhook,
			WebhookHost:    "0.0.0.0",
			WebhookPort:    5000,
			WebhookPath:    "/slack/events",
			APIBase:        "https://slack.com/api",
		},
		Provider: ProviderConfig{
			Name:       "openai",
			TimeoutSec: 30,
			Sentinel:   "Not sure.",
		},
		Knowledge: KnowledgeConfig{
			Path: "qa.json",
		},
		Dedup: DedupConfig{
			Backend: "memory",
			Path:    "qabot.db",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "qabot",
		},
		Logging: LoggingConfig{
			Format: "text",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Existing variables win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}
	envInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	envBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Slack
	envStr(&c.Slack.SigningSecret, "QABOT_SLACK_SIGNING_SECRET", "SLACK_SIGNING_SECRET")
	envStr(&c.Slack.BotToken, "QABOT_SLACK_BOT_TOKEN", "SLACK_BOT_TOKEN", "SLACK_TOKEN")
	envStr(&c.Slack.AppToken, "QABOT_SLACK_APP_TOKEN", "SLACK_APP_TOKEN")
	envStr(&c.Slack.BotUserID, "QABOT_SLACK_BOT_USER_ID")
	envStr(&c.Slack.ConnectionMode, "QABOT_SLACK_CONNECTION_MODE")
	envStr(&c.Slack.WebhookHost, "QABOT_HOST")
	envInt(&c.Slack.WebhookPort, "QABOT_PORT")
	envStr(&c.Slack.APIBase, "QABOT_SLACK_API_BASE")
	if v := os.Getenv("QABOT_SLACK_CHANNELS"); v != "" {
		c.Slack.Channels = splitList(v)
	}

	// Provider
	envStr(&c.Provider.Name, "QABOT_PROVIDER")
	if strings.EqualFold(c.Provider.Name, ProviderAnthropic) {
		envStr(&c.Provider.APIKey, "QABOT_PROVIDER_API_KEY", "ANTHROPIC_API_KEY")
	} else {
		envStr(&c.Provider.APIKey, "QABOT_PROVIDER_API_KEY", "OPENAI_API_KEY")
	}
	envStr(&c.Provider.APIBase, "QABOT_PROVIDER_API_BASE")
	envStr(&c.Provider.ChatPath, "QABOT_PROVIDER_CHAT_PATH")
	envStr(&c.Provider.Model, "QABOT_MODEL")
	envInt(&c.Provider.TimeoutSec, "QABOT_PROVIDER_TIMEOUT_SEC")
	envInt(&c.Provider.RateLimitRPM, "QABOT_PROVIDER_RATE_LIMIT_RPM")

	// Knowledge base & replies
	envStr(&c.Knowledge.Path, "QABOT_KNOWLEDGE_PATH")
	envStr(&c.Knowledge.SourceURL, "QABOT_KNOWLEDGE_URL")
	envStr(&c.Reply.Contact, "QABOT_REPLY_CONTACT")
	envStr(&c.Reply.ProjectURL, "QABOT_REPLY_PROJECT_URL")

	// Dedup
	envStr(&c.Dedup.Backend, "QABOT_DEDUP_BACKEND")
	envStr(&c.Dedup.Path, "QABOT_DEDUP_PATH")
	envStr(&c.Dedup.DSN, "QABOT_DEDUP_DSN", "QABOT_POSTGRES_DSN")

	// Telemetry
	envStr(&c.Telemetry.Endpoint, "QABOT_TELEMETRY_ENDPOINT")
	envStr(&c.Telemetry.Protocol, "QABOT_TELEMETRY_PROTOCOL")
	envStr(&c.Telemetry.ServiceName, "QABOT_TELEMETRY_SERVICE_NAME")
	envBool(&c.Telemetry.Enabled, "QABOT_TELEMETRY_ENABLED")
	envBool(&c.Telemetry.Insecure, "QABOT_TELEMETRY_INSECURE")

	envStr(&c.Logging.Format, "QABOT_LOG_FORMAT")
}

// Validate reports every missing or invalid value at once.
func (c *Config) Validate() error {
	var missing []string
	add := func(format string, args ...any) {
		missing = append(missing, fmt.Sprintf(format, args...))
	}

	s := c.Slack
	if s.BotToken == "" {
		add("slack bot token (QABOT_SLACK_BOT_TOKEN)")
	}
	switch s.ConnectionMode {
	case ModeWebhook:
		if s.SigningSecret == "" {
			add("slack signing secret (QABOT_SLACK_SIGNING_SECRET)")
		}
		if s.WebhookPort <= 0 || s.WebhookPort > 65535 {
			add("slack.webhook_port %d out of range", s.WebhookPort)
		}
		if !strings.HasPrefix(s.WebhookPath, "/") {
			add("slack.webhook_path must start with /")
		}
	case ModeSocket:
		if s.AppToken == "" {
			add("slack app token (QABOT_SLACK_APP_TOKEN) for socket mode")
		}
	default:
		add("slack.connection_mode %q, want %q or %q", s.ConnectionMode, ModeWebhook, ModeSocket)
	}
	if len(c.MonitoredChannels()) == 0 {
		add("slack.channels (at least one monitored channel ID)")
	}

	if !c.Provider.Disabled() {
		// Self-hosted endpoints may run without a key; the hosted APIs never do.
		if c.Provider.APIKey == "" && c.Provider.APIBase == "" {
			add("provider api key (QABOT_PROVIDER_API_KEY)")
		}
	}

	switch c.Dedup.Backend {
	case "memory":
	case "sqlite":
		if c.Dedup.Path == "" {
			add("dedup.path for sqlite backend")
		}
	case "postgres":
		if c.Dedup.DSN == "" {
			add("dedup DSN (QABOT_DEDUP_DSN) for postgres backend")
		}
	default:
		add("dedup.backend %q, want memory, sqlite or postgres", c.Dedup.Backend)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		add("telemetry.endpoint")
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// MonitoredChannels returns the trimmed, non-empty channel IDs.
func (c *Config) MonitoredChannels() []string {
	var out []string
	for _, id := range c.Slack.Channels {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
// Used by the doctor command when printing the effective config.
func (c *Config) MaskedCopy() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	// json:"-" fields are dropped by the round trip; show presence only.
	cp.Slack.SigningSecret = maskNonEmpty(c.Slack.SigningSecret)
	cp.Slack.BotToken = maskNonEmpty(c.Slack.BotToken)
	cp.Slack.AppToken = maskNonEmpty(c.Slack.AppToken)
	cp.Provider.APIKey = maskNonEmpty(c.Provider.APIKey)
	cp.Dedup.DSN = maskNonEmpty(c.Dedup.DSN)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = secretMask
	}
	return cp
}

func maskNonEmpty(s string) string {
	if s != "" {
		return secretMask
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
