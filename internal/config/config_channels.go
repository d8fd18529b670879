package config

// Slack connection modes.
const (
	ModeWebhook = "webhook"
	ModeSocket  = "socket"
)

// SlackConfig configures the Slack transport.
// Secrets are NEVER read from config.json, only from env.
type SlackConfig struct {
	SigningSecret  string              `json:"-"`                         // QABOT_SLACK_SIGNING_SECRET or SLACK_SIGNING_SECRET
	BotToken       string              `json:"-"`                         // QABOT_SLACK_BOT_TOKEN or SLACK_TOKEN
	AppToken       string              `json:"-"`                         // QABOT_SLACK_APP_TOKEN, socket mode only
	BotUserID      string              `json:"bot_user_id,omitempty"`     // skips auth.test discovery when set
	Channels       FlexibleStringSlice `json:"channels"`                  // monitored channel IDs
	ConnectionMode string              `json:"connection_mode,omitempty"` // "webhook" (default), "socket"
	WebhookHost    string              `json:"webhook_host,omitempty"`    // default "0.0.0.0"
	WebhookPort    int                 `json:"webhook_port,omitempty"`    // default 5000
	WebhookPath    string              `json:"webhook_path,omitempty"`    // default "/slack/events"
	RateLimitRPM   int                 `json:"rate_limit_rpm,omitempty"`  // per source IP, 0 = unlimited
	APIBase        string              `json:"api_base,omitempty"`        // default "https://slack.com/api"
}

// SocketMode reports whether events arrive over a Socket Mode websocket.
func (s SlackConfig) SocketMode() bool {
	return s.ConnectionMode == ModeSocket
}
