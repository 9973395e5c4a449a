// Package journal keeps an append-only record of committed and deleted files.
//
// Records are written to a Lode dataset as JSONL with a Hive layout
// partitioned by day and op. The journal is an audit trail: a failed write
// is reported to the caller but never undoes the storage operation that
// produced it.
package journal

import (
	"context"
	"time"
)

// Op names the storage event a record describes.
type Op string

// Journal operations.
const (
	// OpCommit is a chunked upload assembled and stored.
	OpCommit Op = "commit"
	// OpStore is a whole-file store.
	OpStore Op = "store"
	// OpDelete is a file deletion.
	OpDelete Op = "delete"
)

// Entry is one journal record.
type Entry struct {
	Op         Op        `json:"op"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum,omitempty"`
	Chunks     uint32    `json:"chunks,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Time       time.Time `json:"ts"`
}

// Journal records storage events.
type Journal interface {
	// Record appends e. Must respect context cancellation.
	Record(ctx context.Context, e Entry) error

	// Close releases journal resources.
	Close() error
}

// Nop discards every record.
type Nop struct{}

// Record implements Journal.
func (Nop) Record(context.Context, Entry) error { return nil }

// Close implements Journal.
func (Nop) Close() error { return nil }

var _ Journal = Nop{}
