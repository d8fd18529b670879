// Package handler is the per-event entry point of the responder: it filters
// inbound chat messages, deduplicates redeliveries, resolves an answer and
// posts the reply in the message's thread. Failures never escape OnMessage.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/qabot/internal/bus"
	"github.com/nextlevelbuilder/qabot/internal/channels"
	"github.com/nextlevelbuilder/qabot/internal/dedup"
	"github.com/nextlevelbuilder/qabot/internal/reply"
	"github.com/nextlevelbuilder/qabot/internal/resolver"
)

const defaultDeliveryTimeout = 15 * time.Second

var tracer = otel.Tracer("github.com/nextlevelbuilder/qabot/internal/handler")

// Sender delivers text to a channel, threaded under threadTS.
type Sender interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) error
}

// Resolver answers a question.
type Resolver interface {
	Resolve(ctx context.Context, question string) resolver.Result
}

// Formatter renders a result as reply text.
type Formatter interface {
	Format(res resolver.Result) string
}

// Config holds the handler's filtering rules.
type Config struct {
	Channels        []string      // monitored channel IDs
	BotUserID       string        // the bot's own user ID, never answered
	DeliveryTimeout time.Duration // bound on one PostMessage call
}

// Handler is safe for concurrent use by multiple transport goroutines.
type Handler struct {
	channels        map[string]bool
	botUserID       string
	deliveryTimeout time.Duration
	seen            dedup.Store
	resolver        Resolver
	formatter       Formatter
	sender          Sender
}

// New creates a Handler. All collaborators are required.
func New(cfg Config, seen dedup.Store, res Resolver, f Formatter, sender Sender) *Handler {
	channels := make(map[string]bool, len(cfg.Channels))
	for _, id := range cfg.Channels {
		if id = strings.TrimSpace(id); id != "" {
			channels[id] = true
		}
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Handler{
		channels:        channels,
		botUserID:       cfg.BotUserID,
		deliveryTimeout: timeout,
		seen:            seen,
		resolver:        res,
		formatter:       f,
		sender:          sender,
	}
}

// disposition is the terminal state of one event, used for logs and tests.
type disposition string

const (
	dropNotMonitored disposition = "not_monitored"
	dropThreadReply  disposition = "thread_reply"
	dropSelf         disposition = "self"
	dropDuplicate    disposition = "duplicate"
	dropDedupError   disposition = "dedup_error"
	dropEmptyText    disposition = "empty_text"
	replied          disposition = "replied"
	deliveryFailed   disposition = "delivery_failed"
	recovered        disposition = "recovered"
)

// OnMessage handles one inbound event. It matches bus.EventHandler.
func (h *Handler) OnMessage(ctx context.Context, ev bus.InboundEvent) {
	h.handle(ctx, ev)
}

func (h *Handler) handle(ctx context.Context, ev bus.InboundEvent) disposition {
	if !h.channels[ev.ChannelID] {
		return dropNotMonitored
	}
	if !ev.IsTopLevel() {
		return dropThreadReply
	}
	if h.botUserID != "" && ev.UserID == h.botUserID {
		return dropSelf
	}

	log := slog.With("channel_id", ev.ChannelID, "ts", ev.TS, "user_id", ev.UserID)

	// Mark before processing: a concurrent redelivery must lose here.
	fresh, err := h.seen.MarkIfNew(ctx, ev.Key())
	if err != nil {
		log.Error("dedup store failed, dropping event", "error", err)
		return dropDedupError
	}
	if !fresh {
		log.Info("message deduplicated", "retry_num", ev.Metadata["retry_num"])
		return dropDuplicate
	}

	if strings.TrimSpace(ev.Text) == "" {
		log.Warn("received empty message")
		return dropEmptyText
	}

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	ctx, span := tracer.Start(ctx, "handler.OnMessage", trace.WithAttributes(
		attribute.String("qabot.channel_id", ev.ChannelID),
		attribute.String("qabot.ts", ev.TS),
		attribute.String("qabot.run_id", runID),
	))
	defer span.End()

	return h.respond(ctx, log, ev)
}

// respond resolves, formats and delivers. A panic anywhere below is turned
// into a best-effort apology.
func (h *Handler) respond(ctx context.Context, log *slog.Logger, ev bus.InboundEvent) (d disposition) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while handling message", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			if err := h.deliver(ctx, ev, reply.ApologyText); err != nil {
				log.Error("failed to send error reply", "error", err)
			}
			d = recovered
		}
	}()

	log.Info("processing message", "preview", channels.Truncate(ev.Text, 80))

	res := h.resolver.Resolve(ctx, ev.Text)
	switch res.Outcome {
	case resolver.OutcomeAnswered:
		log.Info("answer resolved", "source", string(res.Source), "preview", channels.Truncate(res.Answer, 80))
	case resolver.OutcomeNotFound:
		log.Info("no relevant answer found")
	default:
		log.Error("resolve failed", "error", res.Err)
	}

	text := h.formatter.Format(res)
	if err := h.deliver(ctx, ev, text); err != nil {
		log.Error("failed to deliver reply", "outcome", res.Outcome.String(), "error", err)
		return deliveryFailed
	}
	return replied
}

func (h *Handler) deliver(ctx context.Context, ev bus.InboundEvent, text string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sender panic: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.deliveryTimeout)
	defer cancel()
	return h.sender.PostMessage(ctx, ev.ChannelID, text, ev.TS)
}
