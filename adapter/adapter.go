// Package adapter defines the notification boundary for committed files.
//
// Adapters tell downstream systems that a file landed in storage. The server
// owns adapter lifecycle; operators provide configuration only.
package adapter

import (
	"context"
	"time"
)

// EventTypeFileCommitted is the event_type of every FileCommittedEvent.
const EventTypeFileCommitted = "file_committed"

// FileCommittedEvent is the payload published after a file is stored.
type FileCommittedEvent struct {
	EventType  string `json:"event_type"` // always "file_committed"
	Op         string `json:"op"`         // commit (chunked) or store (whole file)
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Checksum   string `json:"checksum"` // hex SHA-256 of the stored bytes
	Chunks     uint32 `json:"chunks,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Timestamp  string `json:"timestamp"` // RFC 3339, UTC
	Version    string `json:"server_version"`
}

// NewFileCommittedEvent fills the fixed fields of an event.
func NewFileCommittedEvent(op, filename string, size int64, checksum string, at time.Time) *FileCommittedEvent {
	return &FileCommittedEvent{
		EventType: EventTypeFileCommitted,
		Op:        op,
		Filename:  filename,
		Size:      size,
		Checksum:  checksum,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Adapter publishes commit events to a downstream system.
// Implementations must be safe for concurrent use by multiple sessions.
type Adapter interface {
	// Publish sends a commit event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *FileCommittedEvent) error

	// Close releases adapter resources.
	Close() error
}
