package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"
)

// sharedFactory returns a StoreFactory that always returns the given store.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func newMemoryJournal(t *testing.T) *LodeJournal {
	t.Helper()
	j, err := NewWithFactory("netbackup", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewWithFactory failed: %v", err)
	}
	return j
}

func TestLodeJournal_RecordAndHistory(t *testing.T) {
	j := newMemoryJournal(t)
	base := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Op: OpCommit, Filename: "f.bin", Size: 65546, Checksum: "abc", Chunks: 2, SessionID: "s-1", RemoteAddr: "127.0.0.1:5000", Time: base},
		{Op: OpStore, Filename: "notes.txt", Size: 5, Time: base.Add(time.Second)},
		{Op: OpDelete, Filename: "f.bin", Time: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := j.Record(t.Context(), e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := j.History(t.Context(), "")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("History returned %d entries, want 3", len(all))
	}
	first := all[0]
	if first.Op != OpCommit || first.Filename != "f.bin" || first.Size != 65546 ||
		first.Chunks != 2 || first.Checksum != "abc" || first.SessionID != "s-1" {
		t.Errorf("first entry = %+v", first)
	}
	if !first.Time.Equal(base) {
		t.Errorf("first entry time = %v, want %v", first.Time, base)
	}

	fbin, err := j.History(t.Context(), "f.bin")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(fbin) != 2 || fbin[0].Op != OpCommit || fbin[1].Op != OpDelete {
		t.Errorf("f.bin history = %+v", fbin)
	}
}

func TestLodeJournal_RecordFillsTime(t *testing.T) {
	j := newMemoryJournal(t)
	if err := j.Record(t.Context(), Entry{Op: OpStore, Filename: "a"}); err != nil {
		t.Fatal(err)
	}
	got, err := j.History(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Time.IsZero() {
		t.Errorf("expected recorded time, got %+v", got)
	}
}

func TestRecordMap_Partitions(t *testing.T) {
	ts := time.Date(2026, 2, 7, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*60*60))
	rec := toRecordMap(Entry{Op: OpCommit, Filename: "x", Time: ts})

	if rec["day"] != "2026-02-08" {
		t.Errorf("day = %v, want UTC day 2026-02-08", rec["day"])
	}
	if rec["op"] != "commit" {
		t.Errorf("op = %v", rec["op"])
	}
	if id, _ := rec["record_id"].(string); id == "" {
		t.Error("record_id should be set")
	}
}

func TestFromRecordMap_JSONNumbers(t *testing.T) {
	e := fromRecordMap(map[string]any{
		"op":       "store",
		"filename": "n.txt",
		"size":     float64(42),
		"chunks":   float64(3),
		"ts":       "2026-02-07T12:00:00Z",
	})
	if e.Size != 42 || e.Chunks != 3 || e.Op != OpStore {
		t.Errorf("entry = %+v", e)
	}
}

func TestNop(t *testing.T) {
	var j Journal = Nop{}
	if err := j.Record(t.Context(), Entry{Op: OpStore}); err != nil {
		t.Errorf("Nop.Record returned %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Nop.Close returned %v", err)
	}
}

func TestOpen(t *testing.T) {
	j, err := Open(t.Context(), Config{})
	if err != nil {
		t.Fatalf("Open disabled failed: %v", err)
	}
	if _, ok := j.(Nop); !ok {
		t.Errorf("disabled journal should be Nop, got %T", j)
	}

	j, err = Open(t.Context(), Config{Backend: "fs", Path: filepath.Join(t.TempDir(), "journal")})
	if err != nil {
		t.Fatalf("Open fs failed: %v", err)
	}
	lj, ok := j.(*LodeJournal)
	if !ok || lj.Backend() != "fs" {
		t.Errorf("expected fs LodeJournal, got %T", j)
	}

	if _, err := Open(t.Context(), Config{Backend: "fs"}); err == nil {
		t.Error("fs backend without path should fail")
	}
	if _, err := Open(t.Context(), Config{Backend: "tape"}); err == nil ||
		!strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
	if _, err := OpenReader(t.Context(), Config{}); err == nil {
		t.Error("OpenReader without backend should fail")
	}
}

func TestFSJournal_PersistsAcrossOpen(t *testing.T) {
	root := filepath.Join(t.TempDir(), "journal")
	cfg := Config{Backend: "fs", Path: root}

	j, err := Open(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(t.Context(), Entry{Op: OpStore, Filename: "kept.txt", Size: 4}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	reader, err := OpenReader(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reader.History(t.Context(), "kept.txt")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 1 || got[0].Size != 4 {
		t.Errorf("history = %+v", got)
	}
}

func TestNewFS_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "var", "lib", "netbackup", "journal")

	j, err := NewFS("netbackup", root)
	if err != nil {
		t.Fatalf("NewFS on missing root failed: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("journal root not created: %v", err)
	}
	if err := j.Record(t.Context(), Entry{Op: OpDelete, Filename: "gone.txt"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS("netbackup", file); err == nil {
		t.Error("NewFS over a regular file should fail")
	}
}

func TestS3Config(t *testing.T) {
	bucket, prefix := ParseS3Path("backups/netbackup/journal")
	if bucket != "backups" || prefix != "netbackup/journal" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
	bucket, prefix = ParseS3Path("only-bucket")
	if bucket != "only-bucket" || prefix != "" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}

	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty bucket should fail validation")
	}
	if _, err := NewS3(t.Context(), "ds", S3Config{}); err == nil {
		t.Error("NewS3 should reject missing bucket")
	}
}
