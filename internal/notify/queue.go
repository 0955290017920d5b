package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("notify queue full")
	ErrQueueClosed = errors.New("notify queue closed")
)

type queued struct {
	ev      Event
	flushed chan struct{}
}

// Queue delivers events to a sink from a single goroutine so publishers
// never wait on the network. Events are delivered in publish order; when
// the buffer is full new events are dropped.
type Queue struct {
	sink    Sink
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan queued
	done   chan struct{}
}

func NewQueue(sink Sink, logger *slog.Logger, size int, timeout time.Duration) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &Queue{
		sink:    sink,
		log:     logger,
		timeout: timeout,
		ch:      make(chan queued, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for item := range q.ch {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		q.deliver(item.ev)
	}
}

func (q *Queue) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.sink.Publish(ctx, ev); err != nil {
		q.log.Warn("notify failed", "kind", string(ev.Kind), "item", ev.Item.String(), "err", err)
	}
}

// Publish enqueues ev without blocking. The caller's context only bounds
// the enqueue; delivery gets its own timeout.
func (q *Queue) Publish(_ context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- queued{ev: ev}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush blocks until every event published before the call was delivered.
func (q *Queue) Flush() {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		<-q.done
		return
	}
	flushed := make(chan struct{})
	// a blocking send is fine here: run never takes mu
	q.ch <- queued{flushed: flushed}
	q.mu.RUnlock()
	<-flushed
}

// Close stops accepting events and waits for the queued ones to go out.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}
