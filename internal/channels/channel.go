// Package channels provides the transport abstraction that connects a chat
// platform (currently Slack) to the event handler.
//
// A channel receives platform events, converts them to bus.InboundEvent and
// dispatches each one to the handler on its own goroutine, so the platform
// acknowledgement never waits on answer resolution.
package channels

import (
	"context"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/nextlevelbuilder/qabot/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "slack").
	Name() string

	// Start begins listening for events. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel and waits for in-flight events.
	Stop(ctx context.Context) error

	// IsRunning returns whether the channel is actively receiving events.
	IsRunning() bool
}

// BaseChannel provides shared functionality for channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name     string
	handler  bus.EventHandler
	running  atomic.Bool
	inflight sync.WaitGroup
}

// NewBaseChannel creates a new BaseChannel that dispatches to handler.
func NewBaseChannel(name string, handler bus.EventHandler) *BaseChannel {
	return &BaseChannel{name: name, handler: handler}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// Dispatch hands ev to the handler on a new goroutine and returns at once.
// The handler context is detached from ctx's cancellation so an HTTP request
// finishing does not abort the answer.
func (c *BaseChannel) Dispatch(ctx context.Context, ev bus.InboundEvent) {
	if ev.Channel == "" {
		ev.Channel = c.name
	}
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.handler(ctx, ev)
	}()
}

// Wait blocks until every dispatched event has been handled or ctx is done.
func (c *BaseChannel) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Truncate shortens a string to at most maxLen bytes, appending "..." if
// truncated. The cut never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
