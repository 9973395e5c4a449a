package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	_, err := ParseFormat("csv")
	if err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

func sampleFiles() Files {
	return Files{
		{Filename: "a.txt", Size: 5, LastModified: "2026-02-08 10:00:00", Checksum: strings.Repeat("ab", 32)},
		{Filename: "big.iso", Size: 3 << 30, LastModified: "2026-02-08 11:30:00", Checksum: strings.Repeat("cd", 32)},
	}
}

func TestRender_FilesJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)
	if err := r.Render(sampleFiles()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var got []types.FileMetadata
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1].Filename != "big.iso" || got[1].Size != 3<<30 {
		t.Errorf("unexpected JSON listing: %+v", got)
	}
}

func TestRender_FilesYAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)
	if err := r.Render(sampleFiles()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "filename: a.txt") || !strings.Contains(out, "last_modified:") {
		t.Errorf("unexpected YAML: %s", out)
	}
}

func TestRender_FilesTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)
	if err := r.Render(sampleFiles()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "SHA256") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Contains(lines[0], "\x1b[") {
		t.Errorf("--no-color header contains escape codes: %q", lines[0])
	}
	if !strings.Contains(lines[2], "3.0 GiB") {
		t.Errorf("row should show human size: %q", lines[2])
	}
	if !strings.Contains(lines[1], strings.Repeat("ab", 6)) || strings.Contains(lines[1], strings.Repeat("ab", 7)) {
		t.Errorf("checksum should be abbreviated: %q", lines[1])
	}
	// Columns align: SIZE starts at the same offset on every line.
	col := strings.Index(lines[0], "SIZE")
	if lines[1][col-2:col] != "  " {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestRender_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)
	if err := r.Render(Files{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := buf.String(); got != "(no results)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRender_HistoryTable(t *testing.T) {
	at := time.Date(2026, 2, 8, 9, 15, 0, 0, time.UTC)
	h := History{
		{Op: journal.OpCommit, Filename: "f.bin", Size: 65546, Chunks: 2, Checksum: "deadbeef", RemoteAddr: "10.0.0.2:5555", Time: at},
		{Op: journal.OpDelete, Filename: "f.bin", Time: at.Add(time.Minute)},
	}

	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)
	if err := r.Render(h); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2026-02-08 09:15:00", "commit", "64.0 KiB", "10.0.0.2:5555", "delete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_StructFields(t *testing.T) {
	type summary struct {
		Name    string `json:"name"`
		Bytes   int64  `json:"bytes"`
		Skipped bool
	}
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)
	if err := r.Render(summary{Name: "x", Bytes: 7}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "name:") || !strings.Contains(out, "bytes:") || !strings.Contains(out, "skipped:") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{65546, "64.0 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Errorf("HumanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
