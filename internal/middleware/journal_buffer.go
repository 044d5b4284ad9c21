package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	applogger "PolyEdge/pkg/logger"
)

const (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 2 * time.Second
)

// JournalBuffer sits between the ledger and a downstream journal sink.
// Records the sink rejects are buffered and retried in the background with
// exponential backoff; when the buffer is full they are dropped and counted.
type JournalBuffer struct {
	sink    domrepo.JournalSink
	metrics domrepo.Metrics
	l       *applogger.Logger
	bufCh   chan models.JournalRecord
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	mu      sync.Mutex
	sleep   func(time.Duration)
}

var _ domrepo.JournalSink = (*JournalBuffer)(nil)

// BufferOption configures a JournalBuffer.
type BufferOption func(*JournalBuffer)

// WithBufferSize sets how many failed records are held for retry.
func WithBufferSize(n int) BufferOption {
	return func(b *JournalBuffer) {
		if n > 0 {
			b.bufCh = make(chan models.JournalRecord, n)
		}
	}
}

// WithBufferLogger sets the logger.
func WithBufferLogger(l *applogger.Logger) BufferOption {
	return func(b *JournalBuffer) { b.l = l }
}

// NewJournalBuffer wraps sink.
func NewJournalBuffer(sink domrepo.JournalSink, metrics domrepo.Metrics, opts ...BufferOption) *JournalBuffer {
	b := &JournalBuffer{
		sink:    sink,
		metrics: metrics,
		l:       applogger.NewNop(),
		bufCh:   make(chan models.JournalRecord, 1000),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *JournalBuffer) Name() string { return b.sink.Name() }

// Pending returns the number of records waiting for retry.
func (b *JournalBuffer) Pending() int { return len(b.bufCh) }

// Start launches background flushing of buffered records. A stopped buffer does not restart.
func (b *JournalBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		defer close(b.doneCh)
		backoff := minBackoff
		for {
			select {
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			case rec := <-b.bufCh:
				if err := b.sink.Publish(ctx, rec); err != nil {
					b.metrics.RecordError("journal_retry")
					b.sleep(backoff)
					if backoff < maxBackoff {
						backoff *= 2
					}
					b.enqueue(rec)
					continue
				}
				backoff = minBackoff
			}
		}
	}()
}

// Stop stops the background flushing. Records still buffered are reported and discarded.
func (b *JournalBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.stopped = true
	b.mu.Unlock()
	close(b.stopCh)
	<-b.doneCh

	if n := len(b.bufCh); n > 0 {
		b.l.Warn("journal records discarded on shutdown",
			applogger.String("sink", b.sink.Name()),
			applogger.Int("count", n))
	}
}

// Publish forwards rec downstream, buffering it on failure.
func (b *JournalBuffer) Publish(ctx context.Context, rec models.JournalRecord) error {
	start := time.Now()
	if err := b.sink.Publish(ctx, rec); err != nil {
		b.enqueue(rec)
		return fmt.Errorf("%s sink: %w", b.sink.Name(), err)
	}
	b.metrics.RecordLatency("journal_"+b.sink.Name(), time.Since(start).Seconds())
	return nil
}

func (b *JournalBuffer) enqueue(rec models.JournalRecord) {
	select {
	case b.bufCh <- rec:
	default:
		b.metrics.RecordError("journal_buffer_full")
		b.l.Warn("journal buffer full, record dropped",
			applogger.String("sink", b.sink.Name()),
			applogger.String("position", rec.Position.ID),
			applogger.String("action", string(rec.Action)))
	}
}
