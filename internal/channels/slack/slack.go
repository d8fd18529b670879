// Package slack implements the Slack channel: Events API webhook or Socket
// Mode for inbound messages, and the Web API for replies.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nextlevelbuilder/qabot/internal/bus"
	"github.com/nextlevelbuilder/qabot/internal/channels"
	"github.com/nextlevelbuilder/qabot/internal/config"
)

const channelName = "slack"

// Channel receives Slack message events and dispatches them to a handler.
type Channel struct {
	*channels.BaseChannel
	cfg            config.SlackConfig
	client         *Client
	reconnectDelay time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// New creates a Slack channel. handler receives every accepted event on its
// own goroutine.
func New(cfg config.SlackConfig, client *Client, handler bus.EventHandler) *Channel {
	return &Channel{
		BaseChannel:    channels.NewBaseChannel(channelName, handler),
		cfg:            cfg,
		client:         client,
		reconnectDelay: defaultReconnectDelay,
		errCh:          make(chan error, 1),
	}
}

// Err reports a fatal transport failure after Start, such as the webhook
// server exiting.
func (c *Channel) Err() <-chan error { return c.errCh }

// Start begins receiving Slack events via webhook or Socket Mode.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsRunning() {
		return fmt.Errorf("slack channel already running")
	}

	var err error
	if c.cfg.SocketMode() {
		err = c.startSocket(ctx)
	} else {
		err = c.startWebhook()
	}
	if err != nil {
		return err
	}
	c.SetRunning(true)
	return nil
}

// Stop shuts down the transport and waits for in-flight events.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.IsRunning() {
		return nil
	}
	slog.Info("stopping slack channel")

	var err error
	if c.server != nil {
		err = c.server.Shutdown(ctx)
	}
	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.loopDone:
		case <-ctx.Done():
		}
	}
	if werr := c.Wait(ctx); werr != nil {
		slog.Warn("slack channel: in-flight events did not finish", "error", werr)
	}
	c.SetRunning(false)
	return err
}

// WebhookHandler returns the HTTP routes served in webhook mode.
func (c *Channel) WebhookHandler() http.Handler {
	path := c.cfg.WebhookPath
	if path == "" {
		path = "/slack/events"
	}
	mux := http.NewServeMux()
	mux.Handle(path, NewWebhookHandler(c.cfg.SigningSecret, channels.NewWebhookRateLimiter(c.cfg.RateLimitRPM), c.Dispatch))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// Addr returns the webhook listener address, or "" before Start.
func (c *Channel) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

func (c *Channel) startWebhook() error {
	addr := net.JoinHostPort(c.cfg.WebhookHost, strconv.Itoa(c.cfg.WebhookPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("slack webhook listen %s: %w", addr, err)
	}
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.WebhookHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("slack webhook server error", "error", err)
			select {
			case c.errCh <- err:
			default:
			}
		}
	}()

	slog.Info("slack webhook server listening", "addr", ln.Addr().String(), "path", c.cfg.WebhookPath)
	return nil
}

func (c *Channel) startSocket(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.loopDone = make(chan struct{})

	go func() {
		defer close(c.loopDone)
		runSocketMode(loopCtx, c.client.api, c.reconnectDelay, c.Dispatch)
	}()

	slog.Info("slack socket mode started")
	return nil
}
