package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("fs", "memory")

	c.IncConnectionAccepted()
	c.IncConnectionAccepted()
	c.IncConnectionClosed()
	c.IncMessageReceived()
	c.IncDecodeError()
	c.IncResponse("success")
	c.IncResponse("success")
	c.IncResponse("not_found")
	c.IncAuthSuccess()
	c.IncAuthFailure()
	c.IncPermissionDenied()
	c.IncChunkAccepted()
	c.IncChunkAccepted()
	c.IncChunkRejected()
	c.IncUploadCompleted()
	c.IncUploadIncomplete()
	c.AddUploadsSwept(3)
	c.RecordStored(100)
	c.RecordStored(50)
	c.RecordServed(64, false)
	c.RecordServed(150, true)
	c.IncFileDeleted()
	c.IncJournalWriteSuccess()
	c.IncJournalWriteFailure()
	c.IncNotifyFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"ConnectionsAccepted", s.ConnectionsAccepted, 2},
		{"ConnectionsClosed", s.ConnectionsClosed, 1},
		{"MessagesReceived", s.MessagesReceived, 1},
		{"DecodeErrors", s.DecodeErrors, 1},
		{"AuthSuccess", s.AuthSuccess, 1},
		{"AuthFailure", s.AuthFailure, 1},
		{"PermissionDenied", s.PermissionDenied, 1},
		{"ChunksAccepted", s.ChunksAccepted, 2},
		{"ChunksRejected", s.ChunksRejected, 1},
		{"UploadsCompleted", s.UploadsCompleted, 1},
		{"UploadsIncomplete", s.UploadsIncomplete, 1},
		{"UploadsSwept", s.UploadsSwept, 3},
		{"FilesStored", s.FilesStored, 2},
		{"BytesStored", s.BytesStored, 150},
		{"FilesRetrieved", s.FilesRetrieved, 1},
		{"BytesServed", s.BytesServed, 214},
		{"FilesDeleted", s.FilesDeleted, 1},
		{"JournalWriteSuccess", s.JournalWriteSuccess, 1},
		{"JournalWriteFailure", s.JournalWriteFailure, 1},
		{"NotifyFailure", s.NotifyFailure, 1},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	if s.ResponsesByStatus["success"] != 2 || s.ResponsesByStatus["not_found"] != 1 {
		t.Errorf("ResponsesByStatus = %v", s.ResponsesByStatus)
	}
	if s.StorageBackend != "fs" || s.JournalBackend != "memory" {
		t.Errorf("dimensions = %s/%s", s.StorageBackend, s.JournalBackend)
	}
}

func TestCollector_NilReceiver(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.IncConnectionAccepted()
	c.IncConnectionClosed()
	c.IncMessageReceived()
	c.IncDecodeError()
	c.IncResponse("success")
	c.IncAuthSuccess()
	c.IncAuthFailure()
	c.IncPermissionDenied()
	c.IncChunkAccepted()
	c.IncChunkRejected()
	c.IncUploadCompleted()
	c.IncUploadIncomplete()
	c.AddUploadsSwept(1)
	c.RecordStored(1)
	c.RecordServed(1, true)
	c.IncFileDeleted()
	c.IncJournalWriteSuccess()
	c.IncJournalWriteFailure()
	c.IncNotifyFailure()

	s := c.Snapshot()
	if s.MessagesReceived != 0 || s.ResponsesByStatus != nil {
		t.Errorf("nil collector snapshot should be zero, got %+v", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("fs", "")
	c.IncResponse("success")

	s := c.Snapshot()
	s.ResponsesByStatus["success"] = 99

	if got := c.Snapshot().ResponsesByStatus["success"]; got != 1 {
		t.Errorf("mutating a snapshot changed the collector: %d", got)
	}
}

func TestCollector_ConcurrentSafety(t *testing.T) {
	c := NewCollector("fs", "")

	var wg sync.WaitGroup
	const goroutines = 50
	const iterations = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncMessageReceived()
				c.IncResponse("success")
				c.RecordStored(2)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)
	if s.MessagesReceived != want {
		t.Errorf("MessagesReceived = %d, want %d", s.MessagesReceived, want)
	}
	if s.ResponsesByStatus["success"] != want {
		t.Errorf("ResponsesByStatus[success] = %d, want %d", s.ResponsesByStatus["success"], want)
	}
	if s.BytesStored != 2*want {
		t.Errorf("BytesStored = %d, want %d", s.BytesStored, 2*want)
	}
}

func TestSnapshot_Fields(t *testing.T) {
	c := NewCollector("fs", "s3")
	c.IncUploadCompleted()
	f := c.Snapshot().Fields()
	if f["uploads_completed"] != int64(1) {
		t.Errorf("uploads_completed = %v", f["uploads_completed"])
	}
	if f["journal_backend"] != "s3" {
		t.Errorf("journal_backend = %v", f["journal_backend"])
	}
}
