// Package bus holds the transport-neutral message types exchanged between
// channels (Slack webhook, Slack socket mode) and the message handler.
package bus

import "context"

// InboundEvent represents a chat message received from a channel.
type InboundEvent struct {
	Channel   string            `json:"channel"`             // transport name, e.g. "slack"
	ChannelID string            `json:"channel_id"`          // conversation the message was posted in
	UserID    string            `json:"user_id"`             // author of the message
	Text      string            `json:"text,omitempty"`      // empty when the platform sent no text
	TS        string            `json:"ts"`                  // event timestamp, unique per channel
	ThreadTS  string            `json:"thread_ts,omitempty"` // parent timestamp for threaded replies
	Metadata  map[string]string `json:"metadata,omitempty"`  // transport-specific details (event_id, retry_num)
}

// Key returns the deduplication identity of the event: channel ID followed
// by the event timestamp. Two deliveries with the same key are the same message.
func (e InboundEvent) Key() string {
	return e.ChannelID + e.TS
}

// IsTopLevel reports whether the message starts a conversation rather than
// replying inside an existing thread. A thread parent carries thread_ts == ts.
func (e InboundEvent) IsTopLevel() bool {
	return e.ThreadTS == "" || e.ThreadTS == e.TS
}

// EventHandler handles one inbound event. Implementations must not block the
// transport for longer than the platform's acknowledgement window.
type EventHandler func(ctx context.Context, ev InboundEvent)
