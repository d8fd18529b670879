package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
)

const defaultAPIBase = "https://slack.com/api"

// Client wraps the Slack Web API calls the responder makes. Calls are made
// once; the caller decides whether a failure is worth retrying.
type Client struct {
	api      *slackapi.Client
	botToken string
	appToken string
}

// NewClient creates a client. appToken is only needed for Socket Mode.
func NewClient(httpClient *http.Client, baseURL, botToken, appToken string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultAPIBase
	}
	base = strings.TrimRight(base, "/") + "/"

	botToken = strings.TrimSpace(botToken)
	appToken = strings.TrimSpace(appToken)
	opts := []slackapi.Option{
		slackapi.OptionHTTPClient(httpClient),
		slackapi.OptionAPIURL(base),
	}
	if appToken != "" {
		opts = append(opts, slackapi.OptionAppLevelToken(appToken))
	}
	return &Client{
		api:      slackapi.New(botToken, opts...),
		botToken: botToken,
		appToken: appToken,
	}
}

// AuthInfo is the identity returned by auth.test.
type AuthInfo struct {
	TeamID string
	Team   string
	UserID string
	User   string
	BotID  string
}

// AuthTest identifies the bot token's user. The user ID is how the bot
// recognises its own messages.
func (c *Client) AuthTest(ctx context.Context) (AuthInfo, error) {
	if c.botToken == "" {
		return AuthInfo{}, fmt.Errorf("slack auth.test: bot token is required")
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return AuthInfo{}, fmt.Errorf("slack auth.test: %w", err)
	}
	if resp.UserID == "" {
		return AuthInfo{}, fmt.Errorf("slack auth.test returned empty user_id")
	}
	return AuthInfo{
		TeamID: resp.TeamID,
		Team:   resp.Team,
		UserID: resp.UserID,
		User:   resp.User,
		BotID:  resp.BotID,
	}, nil
}

// PostMessage posts text to a channel. A non-empty threadTS posts it as a
// reply in that thread.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if ts := strings.TrimSpace(threadTS); ts != "" {
		opts = append(opts, slackapi.MsgOptionTS(ts))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("slack chat.postMessage: %w", err)
	}
	return nil
}
