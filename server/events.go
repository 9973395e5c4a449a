package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pithecene-io/netbackup/adapter"
	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/metrics"
	"github.com/pithecene-io/netbackup/types"
)

// DefaultEventTimeout bounds one journal write plus notification.
const DefaultEventTimeout = 10 * time.Second

// events records storage mutations to the journal and notifies the
// adapter of new files. Delivery runs off the session goroutine; failures
// are logged and counted, never reported to the client.
type events struct {
	journal journal.Journal
	adapter adapter.Adapter
	timeout time.Duration
	metrics *metrics.Collector
	logger  *log.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

func newEvents(j journal.Journal, a adapter.Adapter, timeout time.Duration, m *metrics.Collector, logger *log.Logger) *events {
	if j == nil {
		j = journal.Nop{}
	}
	if a == nil {
		a = adapter.Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}
	return &events{
		journal: j,
		adapter: a,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func checksumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// emit dispatches e asynchronously. Commit and store entries are also
// published to the adapter.
func (ev *events) emit(ctx context.Context, sess *Session, e journal.Entry) {
	if e.Time.IsZero() {
		e.Time = ev.now()
	}
	e.SessionID = sess.ID
	e.RemoteAddr = sess.RemoteAddr

	ev.wg.Add(1)
	go func() {
		defer ev.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ev.timeout)
		defer cancel()

		// The session may be gone by now, so log through the handler.
		logger := ev.logger.With(map[string]any{
			"session_id":  e.SessionID,
			"remote_addr": e.RemoteAddr,
		})
		fields := map[string]any{"op": string(e.Op), "filename": e.Filename}
		if err := ev.journal.Record(ctx, e); err != nil {
			ev.metrics.IncJournalWriteFailure()
			fields["error"] = err.Error()
			logger.Warn("journal write failed", fields)
		} else {
			ev.metrics.IncJournalWriteSuccess()
		}

		if e.Op == journal.OpDelete {
			return
		}
		event := adapter.NewFileCommittedEvent(string(e.Op), e.Filename, e.Size, e.Checksum, e.Time)
		event.Chunks = e.Chunks
		event.SessionID = e.SessionID
		event.RemoteAddr = e.RemoteAddr
		event.Version = types.Version
		if err := ev.adapter.Publish(ctx, event); err != nil {
			ev.metrics.IncNotifyFailure()
			logger.Warn("notification failed", map[string]any{
				"filename": e.Filename,
				"error":    err.Error(),
			})
		}
	}()
}

// wait blocks until every in-flight dispatch has finished.
func (ev *events) wait() {
	ev.wg.Wait()
}
