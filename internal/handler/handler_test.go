package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nextlevelbuilder/qabot/internal/bus"
	"github.com/nextlevelbuilder/qabot/internal/dedup"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
	"github.com/nextlevelbuilder/qabot/internal/reply"
	"github.com/nextlevelbuilder/qabot/internal/resolver"
)

const (
	monitored = "C088ZPE8WTF"
	botID     = "UBOT"
)

type post struct {
	channelID, text, threadTS string
}

// fakeSender records every PostMessage call.
type fakeSender struct {
	mu    sync.Mutex
	posts []post
	err   error
	fail  func(text string) error
}

func (s *fakeSender) PostMessage(_ context.Context, channelID, text, threadTS string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post{channelID, text, threadTS})
	if s.fail != nil {
		return s.fail(text)
	}
	return s.err
}

func (s *fakeSender) all() []post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]post(nil), s.posts...)
}

// spyStore counts MarkIfNew calls on top of a MemoryStore.
type spyStore struct {
	*dedup.MemoryStore
	marks atomic.Int32
	err   error
}

func (s *spyStore) MarkIfNew(ctx context.Context, key string) (bool, error) {
	s.marks.Add(1)
	if s.err != nil {
		return false, s.err
	}
	return s.MemoryStore.MarkIfNew(ctx, key)
}

type resolverFunc func(ctx context.Context, q string) resolver.Result

func (f resolverFunc) Resolve(ctx context.Context, q string) resolver.Result { return f(ctx, q) }

type countingGenerator struct {
	calls atomic.Int32
	reply string
	err   error
}

func (g *countingGenerator) GenerateAnswer(context.Context, string, string) (string, error) {
	g.calls.Add(1)
	return g.reply, g.err
}

type fixture struct {
	h      *Handler
	sender *fakeSender
	store  *spyStore
	gen    *countingGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kb := knowledge.New([]knowledge.Entry{{Question: "what is X", Answer: "X is Y"}})
	gen := &countingGenerator{reply: "Not sure."}
	store := &spyStore{MemoryStore: dedup.NewMemoryStore()}
	sender := &fakeSender{}
	h := New(Config{Channels: []string{monitored}, BotUserID: botID},
		store, resolver.New(kb, gen, resolver.Options{}), reply.Formatter{}, sender)
	return &fixture{h: h, sender: sender, store: store, gen: gen}
}

func event(text string) bus.InboundEvent {
	return bus.InboundEvent{Channel: "slack", ChannelID: monitored, UserID: "U1", Text: text, TS: "1718000000.000100"}
}

func TestOnMessage_KnowledgeAnswerThreaded(t *testing.T) {
	f := newFixture(t)

	if d := f.h.handle(context.Background(), event("What is x")); d != replied {
		t.Fatalf("disposition = %s, want replied", d)
	}
	posts := f.sender.all()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	p := posts[0]
	if p.channelID != monitored || p.threadTS != "1718000000.000100" {
		t.Fatalf("post = %+v, want threaded reply in %s", p, monitored)
	}
	if !strings.HasPrefix(p.text, "```X is Y```") {
		t.Fatalf("text = %q", p.text)
	}
	if f.gen.calls.Load() != 0 {
		t.Fatal("generator must not be called on a knowledge hit")
	}
}

func TestOnMessage_Filters(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*bus.InboundEvent)
		want       disposition
		wantMarked bool
	}{
		{"unmonitored channel", func(e *bus.InboundEvent) { e.ChannelID = "COTHER" }, dropNotMonitored, false},
		{"thread reply", func(e *bus.InboundEvent) { e.ThreadTS = "1717999999.000001" }, dropThreadReply, false},
		{"own message", func(e *bus.InboundEvent) { e.UserID = botID }, dropSelf, false},
		{"empty text", func(e *bus.InboundEvent) { e.Text = "  " }, dropEmptyText, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ev := event("what is X")
			tt.mutate(&ev)

			if d := f.h.handle(context.Background(), ev); d != tt.want {
				t.Fatalf("disposition = %s, want %s", d, tt.want)
			}
			if n := len(f.sender.all()); n != 0 {
				t.Fatalf("sent %d replies, want 0", n)
			}
			if marked := f.store.marks.Load() > 0; marked != tt.wantMarked {
				t.Fatalf("dedup marked = %v, want %v", marked, tt.wantMarked)
			}
		})
	}
}

func TestOnMessage_ThreadParentIsTopLevel(t *testing.T) {
	f := newFixture(t)
	ev := event("what is X")
	ev.ThreadTS = ev.TS

	if d := f.h.handle(context.Background(), ev); d != replied {
		t.Fatalf("disposition = %s, want replied", d)
	}
}

func TestOnMessage_ReplayIsIgnored(t *testing.T) {
	f := newFixture(t)
	ev := event("what is X")

	f.h.OnMessage(context.Background(), ev)
	ev.Metadata = map[string]string{"retry_num": "1"}
	if d := f.h.handle(context.Background(), ev); d != dropDuplicate {
		t.Fatalf("replay disposition = %s, want duplicate", d)
	}
	if n := len(f.sender.all()); n != 1 {
		t.Fatalf("sent %d replies, want 1", n)
	}
}

func TestOnMessage_ConcurrentDuplicatesPostOnce(t *testing.T) {
	f := newFixture(t)
	ev := event("something not in the knowledge base")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			f.h.OnMessage(context.Background(), ev)
		}()
	}
	close(start)
	wg.Wait()

	if n := len(f.sender.all()); n != 1 {
		t.Fatalf("PostMessage called %d times, want 1", n)
	}
	if n := f.gen.calls.Load(); n != 1 {
		t.Fatalf("generator called %d times, want 1", n)
	}
}

func TestOnMessage_SentinelRepliesNotFound(t *testing.T) {
	f := newFixture(t)

	f.h.OnMessage(context.Background(), event("What is X?"))
	posts := f.sender.all()
	if len(posts) != 1 || !strings.Contains(posts[0].text, "No relevant answer found") {
		t.Fatalf("posts = %+v, want not-found reply", posts)
	}
}

func TestOnMessage_ResolveErrorRepliesApology(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("HTTP 500")

	f.h.OnMessage(context.Background(), event("unknown question"))
	posts := f.sender.all()
	if len(posts) != 1 || posts[0].text != reply.ApologyText {
		t.Fatalf("posts = %+v, want apology", posts)
	}
}

func TestOnMessage_PanicIsContained(t *testing.T) {
	sender := &fakeSender{}
	h := New(Config{Channels: []string{monitored}}, dedup.NewMemoryStore(),
		resolverFunc(func(context.Context, string) resolver.Result { panic("boom") }),
		reply.Formatter{}, sender)

	if d := h.handle(context.Background(), event("q")); d != recovered {
		t.Fatalf("disposition = %s, want recovered", d)
	}
	posts := sender.all()
	if len(posts) != 1 || posts[0].text != reply.ApologyText {
		t.Fatalf("posts = %+v, want single apology", posts)
	}
}

func TestOnMessage_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("channel_not_found")

	if d := f.h.handle(context.Background(), event("what is X")); d != deliveryFailed {
		t.Fatalf("disposition = %s, want delivery_failed", d)
	}
	if n := len(f.sender.all()); n != 1 {
		t.Fatalf("PostMessage called %d times, want 1 (no retry)", n)
	}
}

func TestOnMessage_DedupErrorFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("database is locked")

	if d := f.h.handle(context.Background(), event("what is X")); d != dropDedupError {
		t.Fatalf("disposition = %s, want dedup_error", d)
	}
	if n := len(f.sender.all()); n != 0 {
		t.Fatalf("sent %d replies, want 0", n)
	}
}

func TestOnMessage_SenderPanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = func(string) error { panic("sender exploded") }

	if d := f.h.handle(context.Background(), event("what is X")); d != deliveryFailed {
		t.Fatalf("disposition = %s, want delivery_failed", d)
	}
}
