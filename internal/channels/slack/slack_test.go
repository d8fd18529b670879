package slack

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/qabot/internal/bus"
	"github.com/nextlevelbuilder/qabot/internal/config"
)

func TestChannelWebhookEndToEnd(t *testing.T) {
	cfg := config.Default().Slack
	cfg.SigningSecret = testSigningSecret
	cfg.WebhookHost = "127.0.0.1"
	cfg.WebhookPort = 0

	got := make(chan bus.InboundEvent, 1)
	ch := New(cfg, NewClient(nil, "", "xoxb-1", ""), func(_ context.Context, ev bus.InboundEvent) {
		got <- ev
	})
	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !ch.IsRunning() {
		t.Fatal("channel not running after Start")
	}

	base := "http://" + ch.Addr()
	ts := time.Now().Unix()
	req, _ := http.NewRequest(http.MethodPost, base+"/slack/events", strings.NewReader(messageBody))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Slack-Signature", sign(testSigningSecret, ts, []byte(messageBody)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	select {
	case ev := <-got:
		if ev.Channel != "slack" || ev.ChannelID != "C088ZPE8WTF" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not dispatched")
	}

	health, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(health.Body)
	health.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("healthz = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ch.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ch.IsRunning() {
		t.Fatal("channel still running after Stop")
	}
}

func TestChannelStartListenError(t *testing.T) {
	cfg := config.Default().Slack
	cfg.SigningSecret = testSigningSecret
	cfg.WebhookHost = "127.0.0.1"
	cfg.WebhookPort = 0

	first := New(cfg, NewClient(nil, "", "xoxb-1", ""), func(context.Context, bus.InboundEvent) {})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop(context.Background())

	_, portStr, _ := strings.Cut(first.Addr(), ":")
	cfg.WebhookPort, _ = strconv.Atoi(portStr)
	second := New(cfg, NewClient(nil, "", "xoxb-1", ""), func(context.Context, bus.InboundEvent) {})
	if err := second.Start(context.Background()); err == nil {
		second.Stop(context.Background())
		t.Fatal("expected listen error on a busy port")
	}
}
