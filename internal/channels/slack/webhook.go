package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/nextlevelbuilder/qabot/internal/bus"
	"github.com/nextlevelbuilder/qabot/internal/channels"
)

// maxWebhookBodySize bounds a single Events API request. Slack payloads are a
// few KB.
const maxWebhookBodySize = 1 << 20

var errBadSignature = errors.New("slack signature: mismatch")

// VerifySignature checks Slack's v0 request signature and its five-minute
// timestamp window.
func VerifySignature(secret string, header http.Header, body []byte) error {
	if secret == "" {
		return errors.New("slack signature: signing secret is empty")
	}
	sv, err := slackapi.NewSecretsVerifier(header, secret)
	if err != nil {
		return fmt.Errorf("slack signature: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("slack signature: %w", err)
	}
	// Ensure's error carries the computed signature; keep it out of logs.
	if sv.Ensure() != nil {
		return errBadSignature
	}
	return nil
}

// WebhookHandler serves the Events API request URL. It verifies the
// signature, answers url_verification, and hands message events to onEvent
// before acknowledging, so onEvent must not block.
type WebhookHandler struct {
	secret  string
	limiter *channels.WebhookRateLimiter
	onEvent func(ctx context.Context, ev bus.InboundEvent)
}

// NewWebhookHandler creates a handler. limiter may be nil.
func NewWebhookHandler(secret string, limiter *channels.WebhookRateLimiter, onEvent func(context.Context, bus.InboundEvent)) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		limiter: limiter,
		onEvent: onEvent,
	}
}

// ServeHTTP handles a single Events API request.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	if ip := clientIP(r); !h.limiter.Allow(ip) {
		slog.Warn("slack webhook rate limited", "remote_ip", ip)
		http.Error(w, "", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		slog.Error("slack webhook: failed to read body", "error", err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBodySize {
		http.Error(w, "", http.StatusRequestEntityTooLarge)
		return
	}

	if err := VerifySignature(h.secret, r.Header, body); err != nil {
		slog.Warn("slack webhook: signature verification failed", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "", http.StatusUnauthorized)
		return
	}

	if !json.Valid(body) {
		slog.Warn("slack webhook: bad payload", "remote_addr", r.RemoteAddr)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	// Inner event types the library does not model fail to parse; they are
	// still acknowledged so Slack does not redeliver them.
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.Debug("slack webhook: ignoring unparsed event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": challenge.Challenge})
		return
	case slackevents.CallbackEvent:
		if ev, ok := inboundFromEventsAPI(event); ok {
			if n := r.Header.Get("X-Slack-Retry-Num"); n != "" {
				ev.Metadata["retry_num"] = n
				ev.Metadata["retry_reason"] = r.Header.Get("X-Slack-Retry-Reason")
			}
			h.onEvent(r.Context(), ev)
		} else {
			slog.Debug("slack webhook: ignoring event", "event_type", event.InnerEvent.Type)
		}
	default:
		slog.Debug("slack webhook: unhandled callback type", "type", event.Type)
	}
	w.WriteHeader(http.StatusOK)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
