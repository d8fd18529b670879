package slack

import (
	"context"
	"log/slog"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nextlevelbuilder/qabot/internal/bus"
)

const defaultReconnectDelay = 2 * time.Second

// runSocketMode keeps a Socket Mode session open until ctx is done. The
// library reconnects on its own; if a session gives up, a fresh one is
// started after delay.
func runSocketMode(ctx context.Context, api *slackapi.Client, delay time.Duration, onEvent func(context.Context, bus.InboundEvent)) {
	for {
		if ctx.Err() != nil {
			return
		}
		sm := socketmode.New(api)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			consumeSocketEvents(runCtx, sm, onEvent)
		}()

		err := sm.RunContext(runCtx)
		cancel()
		<-done
		if ctx.Err() != nil {
			return
		}
		slog.Warn("slack socket mode stopped, restarting", "error", err)
		if sleepWithContext(ctx, delay) != nil {
			return
		}
	}
}

// consumeSocketEvents drains sm.Events until ctx is done. Every events_api
// request is acknowledged before its event is dispatched.
func consumeSocketEvents(ctx context.Context, sm *socketmode.Client, onEvent func(context.Context, bus.InboundEvent)) {
	for {
		var evt socketmode.Event
		select {
		case <-ctx.Done():
			return
		case evt = <-sm.Events:
		}

		switch evt.Type {
		case socketmode.EventTypeConnecting:
			slog.Debug("slack socket connecting")
		case socketmode.EventTypeConnected:
			slog.Info("slack socket connected")
		case socketmode.EventTypeConnectionError:
			slog.Warn("slack socket connection error", "error", evt.Data)
		case socketmode.EventTypeEventsAPI:
			if evt.Request != nil {
				sm.Ack(*evt.Request)
			}
			payload, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if ev, ok := inboundFromEventsAPI(payload); ok {
				onEvent(ctx, ev)
			}
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
