package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/netbackup/log"
)

// BatchWriter is a Journal that can persist several entries in one write.
type BatchWriter interface {
	Journal
	RecordBatch(ctx context.Context, entries []Entry) error
}

// ErrBufferFull is returned when the pending buffer is at MaxPending and
// the flush that should have drained it failed.
var ErrBufferFull = errors.New("journal buffer full")

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("journal closed")

// BufferedConfig configures a Buffered journal.
type BufferedConfig struct {
	// BatchSize triggers a flush once this many entries are pending (required).
	BatchSize int
	// FlushInterval flushes pending entries periodically. Zero disables the timer.
	FlushInterval time.Duration
	// MaxPending bounds the buffer while flushes keep failing
	// (default 16 * BatchSize).
	MaxPending int
	// FlushTimeout bounds each timer-driven and closing flush (default 30s).
	FlushTimeout time.Duration
	// Logger receives flush failures. Nil disables logging.
	Logger *log.Logger
}

// BufferedStats reports buffer activity.
type BufferedStats struct {
	Pending       int
	Flushes       int64
	FlushFailures int64
	Persisted     int64
}

// Buffered batches entries in memory and writes them through a BatchWriter.
//
// Entries stay buffered until a flush succeeds, so a failed flush is
// retried by the next one and may duplicate nothing already persisted.
// Entries buffered when the process dies are lost.
type Buffered struct {
	next   BatchWriter
	config BufferedConfig
	logger *log.Logger

	mu      sync.Mutex // guards pending, closed and stats
	pending []Entry
	closed  bool
	stats   BufferedStats

	flushMu sync.Mutex // serializes flushes

	stop chan struct{}
	done chan struct{}
}

// NewBuffered wraps next. The flush timer starts immediately when
// FlushInterval is set.
func NewBuffered(next BatchWriter, config BufferedConfig) (*Buffered, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("journal: batch size must be positive, got %d", config.BatchSize)
	}
	if config.FlushInterval < 0 {
		return nil, fmt.Errorf("journal: flush interval must not be negative")
	}
	if config.MaxPending <= 0 {
		config.MaxPending = 16 * config.BatchSize
	}
	if config.MaxPending < config.BatchSize {
		return nil, fmt.Errorf("journal: max pending %d is below batch size %d", config.MaxPending, config.BatchSize)
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	b := &Buffered{
		next:    next,
		config:  config,
		logger:  logger,
		pending: make([]Entry, 0, config.BatchSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		go b.loop()
	} else {
		close(b.done)
	}
	return b, nil
}

// Record buffers e and flushes when BatchSize entries are pending.
// A flush error is returned, but the entries stay buffered for retry.
func (b *Buffered) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if len(b.pending) >= b.config.MaxPending {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d entries pending", ErrBufferFull, b.config.MaxPending)
	}
	b.pending = append(b.pending, e)
	full := len(b.pending) >= b.config.BatchSize
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes every pending entry in one batch.
func (b *Buffered) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	n := len(b.pending)
	if n == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := make([]Entry, n)
	copy(batch, b.pending)
	b.stats.Flushes++
	b.mu.Unlock()

	if err := b.next.RecordBatch(ctx, batch); err != nil {
		b.mu.Lock()
		b.stats.FlushFailures++
		b.mu.Unlock()
		b.logger.Warn("journal flush failed", map[string]any{"entries": n, "error": err.Error()})
		return err
	}

	// Entries recorded during the write stay pending.
	b.mu.Lock()
	b.pending = append(b.pending[:0], b.pending[n:]...)
	b.stats.Persisted += int64(n)
	b.mu.Unlock()
	return nil
}

func (b *Buffered) loop() {
	defer close(b.done)
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.config.FlushTimeout)
			_ = b.Flush(ctx)
			cancel()
		}
	}
}

// Stats returns a snapshot of buffer activity.
func (b *Buffered) Stats() BufferedStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Pending = len(b.pending)
	return s
}

// Close stops the timer, flushes what is pending and closes the
// underlying journal. Entries that cannot be flushed are reported in the
// returned error and dropped.
func (b *Buffered) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.config.FlushInterval > 0 {
		close(b.stop)
	}
	<-b.done

	ctx, cancel := context.WithTimeout(context.Background(), b.config.FlushTimeout)
	defer cancel()

	var errs []error
	if err := b.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final flush of %d entries: %w", b.Stats().Pending, err))
	}
	if err := b.next.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ Journal = (*Buffered)(nil)
