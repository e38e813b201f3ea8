package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Default batching thresholds.
const (
	DefaultBatchSize     = 20
	DefaultFlushInterval = 2000 * time.Millisecond
)

// Sink receives flushed batches. Implementations must treat a batch as a
// single request.
type Sink interface {
	Flush(ctx context.Context, events []Event) error
}

// Batcher accumulates events on a single shared queue and flushes them as
// batches: immediately when the queue reaches BatchSize, otherwise on an
// idle timer. There is exactly one Batcher per client process; every call
// surface (the stage tracker included) enqueues into the same queue.
type Batcher struct {
	sink          Sink
	batchSize     int
	flushInterval time.Duration

	mu       sync.Mutex
	queue    []Event
	timer    *time.Timer
	pagePath string
	closed   bool
}

// BatcherOpts holds parameters for creating a Batcher.
type BatcherOpts struct {
	Sink          Sink
	BatchSize     int           // defaults to DefaultBatchSize
	FlushInterval time.Duration // defaults to DefaultFlushInterval
}

// NewBatcher creates a Batcher.
func NewBatcher(opts BatcherOpts) (*Batcher, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("analytics: batcher: sink is required")
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Batcher{
		sink:          opts.Sink,
		batchSize:     size,
		flushInterval: interval,
	}, nil
}

// SetPagePath sets the page path stamped onto subsequently enqueued events.
func (b *Batcher) SetPagePath(path string) {
	b.mu.Lock()
	b.pagePath = path
	b.mu.Unlock()
}

// Enqueue appends a normalized event to the shared queue. When the queue
// reaches the batch size the flush happens immediately; otherwise a single
// idle-timer flush is scheduled if none is pending.
func (b *Batcher) Enqueue(evt Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	if evt.PagePath == "" {
		evt.PagePath = b.pagePath
	}
	b.queue = append(b.queue, evt)

	if len(b.queue) >= b.batchSize {
		b.mu.Unlock()
		// Size-triggered flush must not block the caller's mutation path.
		go b.Flush()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushInterval, func() { b.Flush() })
	}
	b.mu.Unlock()
}

// Flush atomically swaps the queue for an empty one, cancels any pending
// timer, and sends the captured batch as a single request. Send errors are
// logged and discarded.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := b.sink.Flush(context.Background(), batch); err != nil {
		log.Printf("analytics: flush %d events failed: %v", len(batch), err)
	}
}

// Close flushes any queued events synchronously and stops the batcher. This
// is the shutdown/unload hook; delivery remains best-effort.
func (b *Batcher) Close() {
	b.Flush()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Pending returns the current queue depth.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
