package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize     = 1024
	defaultFlushTimeout  = 5 * time.Second
	defaultPriorityWait  = 20 * time.Millisecond
	priorityLevel        = slog.LevelWarn
	droppedLevelsTracked = 4 // debug, info, warn, error
)

// AsyncOptions configures the queue in front of a remote log sink.
type AsyncOptions struct {
	// QueueSize bounds the records waiting to be shipped (default 1024).
	QueueSize int
	// FlushTimeout bounds Shutdown when ctx carries no deadline (default 5s).
	FlushTimeout time.Duration
	// PriorityWait is how long a warn or error record waits for queue space
	// before it is dropped. Lower levels never wait. Default 20ms.
	PriorityWait time.Duration
	// OnDrop is called for every dropped record, e.g. to count it in metrics.
	OnDrop func(level slog.Level)
}

type queued struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// shipper owns the queue and the goroutine draining it. All handlers derived
// through WithAttrs/WithGroup share one shipper.
type shipper struct {
	queue        chan queued
	flushTimeout time.Duration
	priorityWait time.Duration
	onDrop       func(slog.Level)

	mu      sync.RWMutex // held for reading while sending, for writing while closing
	closed  bool
	done    chan struct{}
	dropped [droppedLevelsTracked]atomic.Uint64
}

func newShipper(opts AsyncOptions) *shipper {
	s := &shipper{
		queue:        make(chan queued, cmpDefault(opts.QueueSize, defaultQueueSize)),
		flushTimeout: cmpDefault(opts.FlushTimeout, defaultFlushTimeout),
		priorityWait: cmpDefault(opts.PriorityWait, defaultPriorityWait),
		onDrop:       opts.OnDrop,
		done:         make(chan struct{}),
	}
	go s.drain()
	return s
}

func cmpDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (s *shipper) drain() {
	defer close(s.done)
	for q := range s.queue {
		_ = q.handler.Handle(q.ctx, q.record)
	}
}

// levelSlot folds a level into debug/info/warn/error buckets.
func levelSlot(l slog.Level) int {
	switch {
	case l < slog.LevelInfo:
		return 0
	case l < slog.LevelWarn:
		return 1
	case l < slog.LevelError:
		return 2
	default:
		return 3
	}
}

func (s *shipper) drop(l slog.Level) {
	s.dropped[levelSlot(l)].Add(1)
	if s.onDrop != nil {
		s.onDrop(l)
	}
}

func (s *shipper) submit(q queued) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(q.record.Level)
		return
	}

	select {
	case s.queue <- q:
		return
	default:
	}

	if q.record.Level < priorityLevel {
		s.drop(q.record.Level)
		return
	}

	timer := time.NewTimer(s.priorityWait)
	defer timer.Stop()
	select {
	case s.queue <- q:
	case <-timer.C:
		s.drop(q.record.Level)
	}
}

func (s *shipper) close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.flushTimeout)
		defer cancel()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler ships records to a remote sink off the request path. Match
// requests never wait on the network: when the queue is full, debug and info
// records are dropped at once and warn/error records after a short wait.
// Drops are counted per level and reported through AsyncOptions.OnDrop.
type AsyncHandler struct {
	shipper *shipper
	handler slog.Handler
}

// NewAsyncHandler starts the shipper for handler.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{shipper: newShipper(opts), handler: handler}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle queues a clone of r. The context is detached from cancellation so a
// finished request does not abort its own log line.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.handler.Enabled(ctx, r.Level) {
		return nil
	}
	h.shipper.submit(queued{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler})
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{shipper: h.shipper, handler: h.handler.WithAttrs(attrs)}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{shipper: h.shipper, handler: h.handler.WithGroup(name)}
}

// Dropped returns the total number of records dropped so far.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.shipper == nil {
		return 0
	}
	var n uint64
	for i := range h.shipper.dropped {
		n += h.shipper.dropped[i].Load()
	}
	return n
}

// DroppedAt returns how many records at level's bucket were dropped.
func (h *AsyncHandler) DroppedAt(level slog.Level) uint64 {
	if h == nil || h.shipper == nil {
		return 0
	}
	return h.shipper.dropped[levelSlot(level)].Load()
}

// Shutdown stops accepting records and flushes the queue, bounded by ctx
// or by FlushTimeout when ctx has no deadline.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.shipper == nil {
		return nil
	}
	return h.shipper.close(ctx)
}
