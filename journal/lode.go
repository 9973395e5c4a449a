package journal

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"
)

// dayLayout is the Hive partition format for the day key.
const dayLayout = "2006-01-02"

// LodeJournal is a Lode-backed Journal.
// Uses Lode's HiveLayout with partition keys: day/op.
type LodeJournal struct {
	dataset lode.Dataset
	backend string

	mu sync.Mutex // serializes dataset writes
}

// NewDataset opens the journal dataset on factory.
// Read and write paths share this layout and codec.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("day", "op"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewFS creates a journal with filesystem storage rooted at root.
// root is created if it does not exist.
func NewFS(dataset, root string) (*LodeJournal, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create journal root: %w", err)
	}
	return newWithFactory(dataset, lode.NewFSFactory(root), "fs")
}

// NewWithFactory creates a journal with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewWithFactory(dataset string, factory lode.StoreFactory) (*LodeJournal, error) {
	return newWithFactory(dataset, factory, "custom")
}

func newWithFactory(dataset string, factory lode.StoreFactory, backend string) (*LodeJournal, error) {
	ds, err := NewDataset(dataset, factory)
	if err != nil {
		return nil, fmt.Errorf("open journal dataset %q: %w", dataset, err)
	}
	return &LodeJournal{dataset: ds, backend: backend}, nil
}

// Backend names the storage backend ("fs", "s3" or "custom").
func (j *LodeJournal) Backend() string {
	return j.backend
}

// Record writes e as a single JSONL record.
func (j *LodeJournal) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.dataset.Write(ctx, []any{toRecordMap(e)}, lode.Metadata{}); err != nil {
		return fmt.Errorf("journal %s %s: %w", e.Op, e.Filename, err)
	}
	return nil
}

// RecordBatch writes entries in a single dataset snapshot.
func (j *LodeJournal) RecordBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	records := make([]any, 0, len(entries))
	for _, e := range entries {
		if e.Time.IsZero() {
			e.Time = now
		}
		records = append(records, toRecordMap(e))
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return fmt.Errorf("journal batch of %d: %w", len(entries), err)
	}
	return nil
}

// History returns the recorded entries, oldest first.
// A non-empty filename restricts the result to that file.
func (j *LodeJournal) History(ctx context.Context, filename string) ([]Entry, error) {
	return ReadHistory(ctx, j.dataset, filename)
}

// Close releases journal resources.
func (j *LodeJournal) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// ReadHistory reads every record in ds, oldest first.
// A non-empty filename restricts the result to that file.
func ReadHistory(ctx context.Context, ds lode.Dataset, filename string) ([]Entry, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list journal snapshots: %w", err)
	}

	var entries []Entry
	for _, snap := range snapshots {
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, fmt.Errorf("read journal snapshot %s: %w", snap.ID, err)
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			e := fromRecordMap(record)
			if filename != "" && e.Filename != filename {
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Time.Before(entries[b].Time)
	})
	return entries, nil
}

func toRecordMap(e Entry) map[string]any {
	ts := e.Time.UTC()
	return map[string]any{
		"record_id":   uuid.NewString(),
		"day":         ts.Format(dayLayout),
		"op":          string(e.Op),
		"filename":    e.Filename,
		"size":        e.Size,
		"checksum":    e.Checksum,
		"chunks":      e.Chunks,
		"session_id":  e.SessionID,
		"remote_addr": e.RemoteAddr,
		"ts":          ts.Format(time.RFC3339Nano),
	}
}

func fromRecordMap(record map[string]any) Entry {
	e := Entry{
		Op:         Op(toString(record["op"])),
		Filename:   toString(record["filename"]),
		Size:       toInt64(record["size"]),
		Checksum:   toString(record["checksum"]),
		Chunks:     uint32(toInt64(record["chunks"])),
		SessionID:  toString(record["session_id"]),
		RemoteAddr: toString(record["remote_addr"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, toString(record["ts"])); err == nil {
		e.Time = ts
	}
	return e
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a decoded JSON number to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return 0
	}
}

// Verify LodeJournal implements Journal.
var _ BatchWriter = (*LodeJournal)(nil)
