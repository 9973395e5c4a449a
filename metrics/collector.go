// Package metrics provides server-lifetime counters.
//
// The Collector accumulates counters while the server runs. It is a leaf
// package with no internal dependencies. All methods are nil-receiver safe
// so components can run without a collector in tests.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Connections
	ConnectionsAccepted int64 `json:"connections_accepted"`
	ConnectionsClosed   int64 `json:"connections_closed"`

	// Protocol
	MessagesReceived  int64            `json:"messages_received"`
	DecodeErrors      int64            `json:"decode_errors"`
	ResponsesByStatus map[string]int64 `json:"responses_by_status"`

	// Auth
	AuthSuccess      int64 `json:"auth_success"`
	AuthFailure      int64 `json:"auth_failure"`
	PermissionDenied int64 `json:"permission_denied"`

	// Uploads
	ChunksAccepted    int64 `json:"chunks_accepted"`
	ChunksRejected    int64 `json:"chunks_rejected"`
	UploadsCompleted  int64 `json:"uploads_completed"`
	UploadsIncomplete int64 `json:"uploads_incomplete"`
	UploadsSwept      int64 `json:"uploads_swept"`

	// Files
	FilesStored    int64 `json:"files_stored"`
	FilesRetrieved int64 `json:"files_retrieved"`
	FilesDeleted   int64 `json:"files_deleted"`
	BytesStored    int64 `json:"bytes_stored"`
	BytesServed    int64 `json:"bytes_served"`

	// Journal / notifications
	JournalWriteSuccess int64 `json:"journal_write_success"`
	JournalWriteFailure int64 `json:"journal_write_failure"`
	NotifyFailure       int64 `json:"notify_failure"`

	// Dimensions (informational, set at construction)
	StorageBackend string `json:"storage_backend"`
	JournalBackend string `json:"journal_backend"`
}

// Collector accumulates server metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	connectionsAccepted int64
	connectionsClosed   int64

	messagesReceived  int64
	decodeErrors      int64
	responsesByStatus map[string]int64

	authSuccess      int64
	authFailure      int64
	permissionDenied int64

	chunksAccepted    int64
	chunksRejected    int64
	uploadsCompleted  int64
	uploadsIncomplete int64
	uploadsSwept      int64

	filesStored    int64
	filesRetrieved int64
	filesDeleted   int64
	bytesStored    int64
	bytesServed    int64

	journalWriteSuccess int64
	journalWriteFailure int64
	notifyFailure       int64

	storageBackend string
	journalBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storageBackend, journalBackend string) *Collector {
	return &Collector{
		responsesByStatus: make(map[string]int64),
		storageBackend:    storageBackend,
		journalBackend:    journalBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Connections ---

// IncConnectionAccepted records an accepted connection.
func (c *Collector) IncConnectionAccepted() {
	if c == nil {
		return
	}
	c.add(&c.connectionsAccepted, 1)
}

// IncConnectionClosed records a finished session.
func (c *Collector) IncConnectionClosed() {
	if c == nil {
		return
	}
	c.add(&c.connectionsClosed, 1)
}

// --- Protocol ---

// IncMessageReceived records a frame read from a connection.
func (c *Collector) IncMessageReceived() {
	if c == nil {
		return
	}
	c.add(&c.messagesReceived, 1)
}

// IncDecodeError records a frame that failed to decode.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// IncResponse records a response sent with the given status name.
func (c *Collector) IncResponse(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.responsesByStatus[status]++
	c.mu.Unlock()
}

// --- Auth ---

// IncAuthSuccess records a successful Auth request.
func (c *Collector) IncAuthSuccess() {
	if c == nil {
		return
	}
	c.add(&c.authSuccess, 1)
}

// IncAuthFailure records a rejected Auth request.
func (c *Collector) IncAuthFailure() {
	if c == nil {
		return
	}
	c.add(&c.authFailure, 1)
}

// IncPermissionDenied records a request rejected by authorization.
func (c *Collector) IncPermissionDenied() {
	if c == nil {
		return
	}
	c.add(&c.permissionDenied, 1)
}

// --- Uploads ---

// IncChunkAccepted records a stored chunk.
func (c *Collector) IncChunkAccepted() {
	if c == nil {
		return
	}
	c.add(&c.chunksAccepted, 1)
}

// IncChunkRejected records a rejected chunk.
func (c *Collector) IncChunkRejected() {
	if c == nil {
		return
	}
	c.add(&c.chunksRejected, 1)
}

// IncUploadCompleted records a committed chunked upload.
func (c *Collector) IncUploadCompleted() {
	if c == nil {
		return
	}
	c.add(&c.uploadsCompleted, 1)
}

// IncUploadIncomplete records a completion attempt with missing chunks.
func (c *Collector) IncUploadIncomplete() {
	if c == nil {
		return
	}
	c.add(&c.uploadsIncomplete, 1)
}

// AddUploadsSwept records pending uploads dropped as stale.
func (c *Collector) AddUploadsSwept(n int) {
	if c == nil {
		return
	}
	c.add(&c.uploadsSwept, int64(n))
}

// --- Files ---

// RecordStored records a committed file of size bytes.
func (c *Collector) RecordStored(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesStored++
	c.bytesStored += size
	c.mu.Unlock()
}

// RecordServed records bytes sent to a client. whole marks a complete
// file retrieval rather than a single chunk.
func (c *Collector) RecordServed(size int64, whole bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if whole {
		c.filesRetrieved++
	}
	c.bytesServed += size
	c.mu.Unlock()
}

// IncFileDeleted records a deleted file.
func (c *Collector) IncFileDeleted() {
	if c == nil {
		return
	}
	c.add(&c.filesDeleted, 1)
}

// --- Journal / notifications ---

// IncJournalWriteSuccess records a successful journal write.
func (c *Collector) IncJournalWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.journalWriteSuccess, 1)
}

// IncJournalWriteFailure records a failed journal write.
func (c *Collector) IncJournalWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.journalWriteFailure, 1)
}

// IncNotifyFailure records a failed commit notification.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable copy of all counters.
// Returns a zero-value Snapshot if the collector is nil.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byStatus := make(map[string]int64, len(c.responsesByStatus))
	for k, v := range c.responsesByStatus {
		byStatus[k] = v
	}

	return Snapshot{
		ConnectionsAccepted: c.connectionsAccepted,
		ConnectionsClosed:   c.connectionsClosed,
		MessagesReceived:    c.messagesReceived,
		DecodeErrors:        c.decodeErrors,
		ResponsesByStatus:   byStatus,
		AuthSuccess:         c.authSuccess,
		AuthFailure:         c.authFailure,
		PermissionDenied:    c.permissionDenied,
		ChunksAccepted:      c.chunksAccepted,
		ChunksRejected:      c.chunksRejected,
		UploadsCompleted:    c.uploadsCompleted,
		UploadsIncomplete:   c.uploadsIncomplete,
		UploadsSwept:        c.uploadsSwept,
		FilesStored:         c.filesStored,
		FilesRetrieved:      c.filesRetrieved,
		FilesDeleted:        c.filesDeleted,
		BytesStored:         c.bytesStored,
		BytesServed:         c.bytesServed,
		JournalWriteSuccess: c.journalWriteSuccess,
		JournalWriteFailure: c.journalWriteFailure,
		NotifyFailure:       c.notifyFailure,
		StorageBackend:      c.storageBackend,
		JournalBackend:      c.journalBackend,
	}
}

// Fields flattens the snapshot counters into a log field map.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"connections_accepted":  s.ConnectionsAccepted,
		"connections_closed":    s.ConnectionsClosed,
		"messages_received":     s.MessagesReceived,
		"decode_errors":         s.DecodeErrors,
		"responses_by_status":   s.ResponsesByStatus,
		"auth_success":          s.AuthSuccess,
		"auth_failure":          s.AuthFailure,
		"permission_denied":     s.PermissionDenied,
		"chunks_accepted":       s.ChunksAccepted,
		"chunks_rejected":       s.ChunksRejected,
		"uploads_completed":     s.UploadsCompleted,
		"uploads_incomplete":    s.UploadsIncomplete,
		"uploads_swept":         s.UploadsSwept,
		"files_stored":          s.FilesStored,
		"files_retrieved":       s.FilesRetrieved,
		"files_deleted":         s.FilesDeleted,
		"bytes_stored":          s.BytesStored,
		"bytes_served":          s.BytesServed,
		"journal_write_success": s.JournalWriteSuccess,
		"journal_write_failure": s.JournalWriteFailure,
		"notify_failure":        s.NotifyFailure,
		"storage_backend":       s.StorageBackend,
		"journal_backend":       s.JournalBackend,
	}
}
