package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/Cheese-arena/internal/turn"
)

type hook struct {
	mu     sync.Mutex
	bodies []turn.Event
	kinds  []string
	fail   int // respond 503 to this many requests first
	status int
}

func (h *hook) handle(ctx *fasthttp.RequestCtx) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail > 0 {
		h.fail--
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}
	if h.status != 0 {
		ctx.SetStatusCode(h.status)
		return
	}
	var ev turn.Event
	_ = json.Unmarshal(ctx.PostBody(), &ev)
	h.bodies = append(h.bodies, ev)
	h.kinds = append(h.kinds, string(ctx.Request.Header.Peek("X-Arena-Event")))
}

func (h *hook) received() []turn.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]turn.Event(nil), h.bodies...)
}

func newHookServer(t *testing.T, h *hook) fasthttp.DialFunc {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(string) (net.Conn, error) { return ln.Dial() }
}

func TestWebhookDelivers(t *testing.T) {
	h := &hook{}
	w, err := NewWebhook("http://arena.test/events", WithDial(newHookServer(t, h)), WithHeader("X-Token", "t"))
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	ev := turn.Event{Kind: turn.EventMoveApplied, SessionID: "s1", Side: "white", Move: "e2e4", Ply: 1}
	if err := w.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := h.received()
	if len(got) != 1 || got[0].Move != "e2e4" || got[0].SessionID != "s1" {
		t.Fatalf("received %+v", got)
	}
	if h.kinds[0] != "move_applied" {
		t.Fatalf("event header = %q", h.kinds[0])
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	h := &hook{fail: 2}
	w, _ := NewWebhook("http://arena.test/events", WithDial(newHookServer(t, h)), WithRetries(2))
	if err := w.Send(context.Background(), turn.Event{Kind: turn.EventGameOver}); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if len(h.received()) != 1 {
		t.Fatalf("expected one delivered event")
	}
}

func TestWebhookGivesUpOnClientError(t *testing.T) {
	h := &hook{status: fasthttp.StatusBadRequest}
	w, _ := NewWebhook("http://arena.test/events", WithDial(newHookServer(t, h)), WithRetries(3))
	if err := w.Send(context.Background(), turn.Event{Kind: turn.EventUndone}); err == nil {
		t.Fatalf("expected error for 400")
	}
}

func TestNewWebhookRejectsBadURL(t *testing.T) {
	if _, err := NewWebhook("ftp://example"); err == nil {
		t.Fatalf("expected url error")
	}
}

type recordingSender struct {
	mu  sync.Mutex
	got []turn.Event
	err error
}

func (r *recordingSender) Send(_ context.Context, ev turn.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherDeliversInOrderAndDrains(t *testing.T) {
	rs := &recordingSender{err: errors.New("ignored")}
	d := NewDispatcher(rs, 8, nil)
	sink := d.Sink()
	for i := 1; i <= 3; i++ {
		sink(turn.Event{Kind: turn.EventMoveApplied, Ply: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for rs.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-d.Done()

	if rs.count() != 3 {
		t.Fatalf("delivered %d events", rs.count())
	}
	for i, ev := range rs.got {
		if ev.Ply != i+1 {
			t.Fatalf("out of order: %+v", rs.got)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, nil)
	d.Enqueue(turn.Event{Kind: turn.EventMoveApplied})
	d.Enqueue(turn.Event{Kind: turn.EventMoveApplied})
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d", d.Dropped())
	}
}
