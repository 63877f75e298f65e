package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueue       = 256
	defaultSendTimeout = 5 * time.Second
)

// Recorder fans events out to sinks from a single background goroutine so
// that callers holding the registry lock never wait on I/O. When the queue
// is full new events are dropped and counted.
type Recorder struct {
	sinks   []Sink
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped int
}

// NewRecorder starts a recorder. A recorder with no sinks accepts and
// discards events.
func NewRecorder(log *slog.Logger, sinks ...Sink) *Recorder {
	r := &Recorder{
		sinks:   sinks,
		log:     log,
		timeout: defaultSendTimeout,
		queue:   make(chan Event, defaultQueue),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e without blocking. A nil recorder is a no-op.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.sinks) == 0 {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped++
	}
}

// Dropped is the number of events discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := s.Send(ctx, e); err != nil {
				r.log.Warn("history send failed", "program", e.Program, "type", e.Type, "error", err)
			}
			cancel()
		}
	}
}

// Close drains queued events, bounded by ctx, then closes every sink that
// implements io.Closer.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	var errs []error
	select {
	case <-r.done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
