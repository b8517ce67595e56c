package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/turn"
)

const defaultQueueSize = 64

// Sender delivers one event. *Webhook implements it.
type Sender interface {
	Send(ctx context.Context, ev turn.Event) error
}

// Dispatcher moves events off the turn loop onto its own goroutine.
// Enqueue never blocks; when the queue is full the event is dropped.
type Dispatcher struct {
	sender Sender
	logger *zap.Logger
	queue  chan turn.Event

	dropped atomic.Int64
	once    sync.Once
	done    chan struct{}
}

func NewDispatcher(sender Sender, size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan turn.Event, size),
		done:   make(chan struct{}),
	}
}

// Sink adapts the dispatcher to a turn.Sink.
func (d *Dispatcher) Sink() turn.Sink { return d.Enqueue }

func (d *Dispatcher) Enqueue(ev turn.Event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notify_queue_full", zap.String("kind", string(ev.Kind)), zap.String("session_id", ev.SessionID))
	}
}

func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run delivers queued events until ctx ends, then drains what is left
// with a fresh context.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.once.Do(func() { close(d.done) })
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.queue:
			d.send(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.send(context.Background(), ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, ev turn.Event) {
	if err := d.sender.Send(ctx, ev); err != nil {
		d.logger.Warn("notify_failed", zap.String("kind", string(ev.Kind)), zap.String("session_id", ev.SessionID), zap.Error(err))
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
