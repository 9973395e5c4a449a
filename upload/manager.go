// Package upload reassembles files sent as independent chunks.
//
// Chunks for one filename accumulate in a pending entry until the client
// asks to complete the upload. Entries for different filenames never
// contend: the table lock covers only lookup, insert and delete, and each
// entry carries its own lock for its chunk data.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/netbackup/storage"
	"github.com/pithecene-io/netbackup/wire"
)

// Errors returned by the Manager. Use errors.Is for classification.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrInvalidTotal     = errors.New("total chunks must be at least 1")
	ErrChunkOutOfRange  = errors.New("chunk number out of range")
	ErrChunkTooLarge    = errors.New("chunk exceeds maximum size")
	ErrTotalMismatch    = errors.New("total chunks differs from pending upload")
	ErrNoPendingUpload  = errors.New("no pending upload")
	ErrIncompleteUpload = errors.New("upload incomplete")
)

// maxReportedMissing caps the indices listed in an IncompleteError message.
const maxReportedMissing = 16

// IncompleteError reports which chunks a completion attempt was missing.
// Missing holds the lowest missing indices, at most maxReportedMissing of
// them; Expected-Received is the full count.
type IncompleteError struct {
	Filename string
	Received uint32
	Expected uint32
	Missing  []uint32
}

func (e *IncompleteError) Error() string {
	suffix := ""
	if e.Expected-e.Received > uint32(len(e.Missing)) {
		suffix = ", ..."
	}
	return fmt.Sprintf("%s: have %d of %d chunks, missing %v%s",
		e.Filename, e.Received, e.Expected, e.Missing, suffix)
}

// Is matches ErrIncompleteUpload.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteUpload
}

type pending struct {
	mu       sync.Mutex
	expected uint32
	chunks   map[uint32][]byte
	bytes    int64
	updated  time.Time
	removed  atomic.Bool
}

// missing returns up to limit of the lowest absent indices. The scan stops
// once limit are found, so it visits at most len(chunks)+limit indices.
func (p *pending) missing(limit int) []uint32 {
	out := make([]uint32, 0, limit)
	for i := uint32(0); i < p.expected && len(out) < limit; i++ {
		if _, ok := p.chunks[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (p *pending) assemble() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, p.bytes))
	for i := uint32(0); i < p.expected; i++ {
		buf.Write(p.chunks[i])
	}
	return buf.Bytes()
}

// Result describes a completed upload.
type Result struct {
	Filename string
	Size     int64
	Chunks   uint32
}

// Stats is a point-in-time view of the pending table.
type Stats struct {
	PendingUploads int   `json:"pending_uploads"`
	BufferedChunks int   `json:"buffered_chunks"`
	BufferedBytes  int64 `json:"buffered_bytes"`
}

// Manager owns the pending-upload table.
// Thread-safe for concurrent access.
type Manager struct {
	mu      sync.Mutex
	uploads map[string]*pending
	now     func() time.Time
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		uploads: make(map[string]*pending),
		now:     time.Now,
	}
}

// lookup returns the live entry for filename, creating one with total
// expected chunks if none exists or the existing one was removed.
func (m *Manager) lookup(filename string, total uint32) *pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.uploads[filename]
	if !ok || p.removed.Load() {
		p = &pending{
			expected: total,
			chunks:   make(map[uint32][]byte),
			updated:  m.now(),
		}
		m.uploads[filename] = p
	}
	return p
}

// forget deletes filename from the table if it still maps to p.
func (m *Manager) forget(filename string, p *pending) {
	m.mu.Lock()
	if m.uploads[filename] == p {
		delete(m.uploads, filename)
	}
	m.mu.Unlock()
}

// AcceptChunk stores data as chunk chunkNumber of filename and reports
// whether every expected chunk has now been received.
//
// The first chunk seen for a filename fixes its expected total; a later
// chunk declaring a different total is rejected with ErrTotalMismatch and
// leaves the entry untouched. Re-sending an index replaces its data.
func (m *Manager) AcceptChunk(filename string, chunkNumber, totalChunks uint32, data []byte) (bool, error) {
	if !storage.ValidateName(filename) {
		return false, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if totalChunks == 0 {
		return false, ErrInvalidTotal
	}
	if chunkNumber >= totalChunks {
		return false, fmt.Errorf("%w: chunk %d of %d", ErrChunkOutOfRange, chunkNumber, totalChunks)
	}
	if len(data) > wire.MaxChunkSize {
		return false, fmt.Errorf("%w: %d bytes (max %d)", ErrChunkTooLarge, len(data), wire.MaxChunkSize)
	}

	stored := bytes.Clone(data)
	if stored == nil {
		stored = []byte{}
	}

	for {
		p := m.lookup(filename, totalChunks)
		p.mu.Lock()
		if p.removed.Load() {
			// Completed or swept between lookup and lock.
			p.mu.Unlock()
			continue
		}
		if p.expected != totalChunks {
			expected := p.expected
			p.mu.Unlock()
			return false, fmt.Errorf("%w: %s expects %d, chunk declares %d",
				ErrTotalMismatch, filename, expected, totalChunks)
		}

		if old, ok := p.chunks[chunkNumber]; ok {
			p.bytes -= int64(len(old))
		}
		p.chunks[chunkNumber] = stored
		p.bytes += int64(len(stored))
		p.updated = m.now()
		complete := uint32(len(p.chunks)) == p.expected
		p.mu.Unlock()
		return complete, nil
	}
}

// Complete assembles filename's chunks in index order and passes the
// bytes to commit. If commit succeeds the entry is removed; otherwise it
// is kept so the client can retry.
//
// Errors:
//   - ErrNoPendingUpload: no entry exists for filename
//   - *IncompleteError (matches ErrIncompleteUpload): chunks are missing;
//     the entry is preserved
//   - the error returned by commit
func (m *Manager) Complete(filename string, commit func(data []byte) error) (Result, error) {
	m.mu.Lock()
	p, ok := m.uploads[filename]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoPendingUpload, filename)
	}

	p.mu.Lock()
	if p.removed.Load() {
		p.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrNoPendingUpload, filename)
	}
	if uint32(len(p.chunks)) < p.expected {
		err := &IncompleteError{
			Filename: filename,
			Received: uint32(len(p.chunks)),
			Expected: p.expected,
			Missing:  p.missing(maxReportedMissing),
		}
		p.mu.Unlock()
		return Result{}, err
	}

	data := p.assemble()
	if err := commit(data); err != nil {
		p.updated = m.now()
		p.mu.Unlock()
		return Result{}, err
	}
	p.removed.Store(true)
	chunks := p.expected
	p.mu.Unlock()

	// Entry lock must be released before taking the table lock.
	m.forget(filename, p)

	return Result{Filename: filename, Size: int64(len(data)), Chunks: chunks}, nil
}

// Progress reports how many chunks filename has received out of the
// expected total. ok is false when no upload is pending.
func (m *Manager) Progress(filename string) (received, expected uint32, ok bool) {
	m.mu.Lock()
	p, found := m.uploads[filename]
	m.mu.Unlock()
	if !found {
		return 0, 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removed.Load() {
		return 0, 0, false
	}
	return uint32(len(p.chunks)), p.expected, true
}

// Stats returns a snapshot of the pending table.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := make([]*pending, 0, len(m.uploads))
	for _, p := range m.uploads {
		entries = append(entries, p)
	}
	m.mu.Unlock()

	var s Stats
	for _, p := range entries {
		p.mu.Lock()
		if !p.removed.Load() {
			s.PendingUploads++
			s.BufferedChunks += len(p.chunks)
			s.BufferedBytes += p.bytes
		}
		p.mu.Unlock()
	}
	return s
}

// SweepStale drops pending uploads that have not received a chunk for
// longer than maxAge and returns their filenames in sorted order.
func (m *Manager) SweepStale(maxAge time.Duration) []string {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	var swept []string
	for name, p := range m.uploads {
		if !p.mu.TryLock() {
			// Busy entries are in use and not stale.
			continue
		}
		if p.updated.Before(cutoff) {
			p.removed.Store(true)
			delete(m.uploads, name)
			swept = append(swept, name)
		}
		p.mu.Unlock()
	}
	sort.Strings(swept)
	return swept
}

// RunSweeper calls SweepStale every interval until ctx is done.
// onSweep, if non-nil, receives each non-empty batch of swept names.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxAge time.Duration, onSweep func([]string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := m.SweepStale(maxAge); len(swept) > 0 && onSweep != nil {
				onSweep(swept)
			}
		}
	}
}
