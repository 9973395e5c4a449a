package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/adapter"
	"github.com/pithecene-io/netbackup/adapter/redis"
	"github.com/pithecene-io/netbackup/adapter/webhook"
	"github.com/pithecene-io/netbackup/auth"
	"github.com/pithecene-io/netbackup/cli/config"
	"github.com/pithecene-io/netbackup/client"
	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/server"
	"github.com/pithecene-io/netbackup/storage"
	"github.com/pithecene-io/netbackup/types"
	"github.com/pithecene-io/netbackup/upload"
)

const testPassword = "correct horse"

type testServer struct {
	addr       string
	journalDir string
	handler    *server.Handler
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "storage_data"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	journalDir := t.TempDir()
	j, err := journal.NewFS(journal.DefaultDataset, journalDir)
	if err != nil {
		t.Fatalf("journal.NewFS: %v", err)
	}

	uploads := upload.NewManager()
	handler := server.NewHandler(server.HandlerConfig{Storage: st, Uploads: uploads, Journal: j})
	srv := server.New(server.Config{}, auth.NewGate(testPassword), handler, uploads, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = j.Close()
	})
	return &testServer{addr: ln.Addr().String(), journalDir: journalDir, handler: handler}
}

// writeConfig writes a config pointing at ts and returns its path.
// The password is also exported so no command prompts for it.
func writeConfig(t *testing.T, ts *testServer) string {
	t.Helper()
	t.Setenv("NETBACKUP_PASSWORD", testPassword)
	path := filepath.Join(t.TempDir(), "netbackup.yaml")
	content := fmt.Sprintf(`client:
  default_server: %s
  chunk_size: 16384
auth:
  password: %s
log:
  level: error
journal:
  backend: fs
  path: %s
`, ts.addr, testPassword, ts.journalDir)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := NewApp("test")
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(t.Context(), append([]string{"netbackup"}, args...))
	return out.String(), err
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("expected cli.ExitCoder, got %T: %v", err, err)
	}
	return ec.ExitCode()
}

func listFiles(t *testing.T, cfgPath string) []types.FileMetadata {
	t.Helper()
	out, err := runApp(t, "--config", cfgPath, "list", "--format", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var files []types.FileMetadata
	if err := json.Unmarshal([]byte(out), &files); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	return files
}

func TestCLI_Lifecycle(t *testing.T) {
	ts := startServer(t)
	cfgPath := writeConfig(t, ts)

	dir := t.TempDir()
	local := filepath.Join(dir, "f.bin")
	data := append(bytes.Repeat([]byte{0xAA}, 65536), bytes.Repeat([]byte{0xBB}, 10)...)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "--config", cfgPath, "upload", "--no-progress", local)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "as f.bin") || !strings.Contains(out, "5 chunks") {
		t.Errorf("unexpected upload output: %q", out)
	}

	files := listFiles(t, cfgPath)
	if len(files) != 1 || files[0].Filename != "f.bin" || files[0].Size != 65546 {
		t.Fatalf("unexpected listing: %+v", files)
	}

	dest := filepath.Join(dir, "restored.bin")
	if _, err := runApp(t, "--config", cfgPath, "download", "--no-progress", "f.bin", dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("downloaded %d bytes, want %d identical bytes", len(got), len(data))
	}

	_, err = runApp(t, "--config", cfgPath, "download", "--no-progress", "f.bin", dest)
	if err == nil || exitCodeOf(t, err) != exitUsage {
		t.Errorf("download over existing file should fail with usage error, got %v", err)
	}
	if _, err := runApp(t, "--config", cfgPath, "download", "--no-progress", "--whole", "--force", "f.bin", dest); err != nil {
		t.Errorf("download --force: %v", err)
	}

	if _, err := runApp(t, "--config", cfgPath, "delete", "f.bin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if files := listFiles(t, cfgPath); len(files) != 0 {
		t.Errorf("listing after delete: %+v", files)
	}

	ts.handler.Wait()
	out, err = runApp(t, "--config", cfgPath, "history", "--format", "json", "f.bin")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []journal.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Op != journal.OpCommit || entries[0].Chunks != 5 || entries[0].Size != 65546 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Op != journal.OpDelete {
		t.Errorf("second entry = %+v", entries[1])
	}

	out, err = runApp(t, "--config", cfgPath, "history", "--format", "json", "--limit", "1")
	if err != nil {
		t.Fatalf("history --limit: %v", err)
	}
	entries = nil
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Op != journal.OpDelete {
		t.Errorf("history --limit 1 = %+v", entries)
	}
}

func TestCLI_WholeUploadWithRemoteName(t *testing.T) {
	ts := startServer(t)
	cfgPath := writeConfig(t, ts)

	local := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(local, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "--config", cfgPath, "upload", "--no-progress", "--whole", local, "renamed.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "as renamed.txt") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = runApp(t, "--config", cfgPath, "download", "--no-progress", "renamed.txt", "-")
	if err != nil {
		t.Fatalf("download to stdout: %v", err)
	}
	if out != "hello" {
		t.Errorf("stdout = %q, want %q", out, "hello")
	}
}

func TestCLI_ExitCodes(t *testing.T) {
	ts := startServer(t)
	cfgPath := writeConfig(t, ts)

	_, err := runApp(t, "--config", cfgPath, "list", "--password", "wrong")
	if err == nil || exitCodeOf(t, err) != exitDenied {
		t.Errorf("wrong password: want exit %d, got %v", exitDenied, err)
	}

	dest := filepath.Join(t.TempDir(), "missing.bin")
	_, err = runApp(t, "--config", cfgPath, "download", "--no-progress", "missing.bin", dest)
	if err == nil || exitCodeOf(t, err) != exitNotFound {
		t.Errorf("missing file: want exit %d, got %v", exitNotFound, err)
	}

	_, err = runApp(t, "--config", cfgPath, "delete")
	if err == nil || exitCodeOf(t, err) != exitUsage {
		t.Errorf("delete without name: want exit %d, got %v", exitUsage, err)
	}

	local := filepath.Join(t.TempDir(), "x")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = runApp(t, "--config", cfgPath, "upload", "--no-progress", local, "../escape")
	if err == nil || exitCodeOf(t, err) != exitUsage {
		t.Errorf("traversal name: want exit %d, got %v", exitUsage, err)
	}

	_, err = runApp(t, "--config", cfgPath, "upload", "--no-progress", "--chunk-size", "0", local)
	if err == nil || exitCodeOf(t, err) != exitUsage {
		t.Errorf("zero chunk size: want exit %d, got %v", exitUsage, err)
	}

	_, err = runApp(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "list")
	if err == nil || exitCodeOf(t, err) != exitUsage {
		t.Errorf("missing config: want exit %d, got %v", exitUsage, err)
	}
}

func TestCLI_InitConfigAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netbackup.yaml")
	out, err := runApp(t, "init-config", "--output", path)
	if err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("generated config does not load: %v", err)
	}
	_, err = runApp(t, "init-config", "--output", path)
	if err == nil || exitCodeOf(t, err) != exitFailure {
		t.Errorf("second init-config should fail, got %v", err)
	}

	out, err = runApp(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v VersionResponse
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("version output is not JSON: %v", err)
	}
	if v.Version != types.Version || v.Commit != "test" || v.HeaderLen != 70 {
		t.Errorf("version = %+v", v)
	}
}

func TestResolvePassword(t *testing.T) {
	prompt := func(answer string, err error) func() (string, error) {
		return func() (string, error) { return answer, err }
	}

	tests := []struct {
		name        string
		explicit    string
		explicitSet bool
		prompt      func() (string, error)
		want        string
		wantErr     bool
	}{
		{"flag wins", "flag", true, prompt("typed", nil), "flag", false},
		{"empty flag is still explicit", "", true, prompt("typed", nil), "", false},
		{"prompt", "", false, prompt("typed", nil), "typed", false},
		{"empty prompt uses config", "", false, prompt("", nil), "configured", false},
		{"no terminal uses config", "", false, nil, "configured", false},
		{"prompt error", "", false, prompt("", errors.New("eof")), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePassword(tt.explicit, tt.explicitSet, "configured", tt.prompt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("password = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"denied", fmt.Errorf("wrapped: %w", client.ErrPermissionDenied), exitDenied},
		{"not found", client.ErrNotFound, exitNotFound},
		{"other", errors.New("connection reset"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := exitError("op", tt.err)
			if got := exitCodeOf(t, err); got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
			if !strings.HasPrefix(err.Error(), "op: ") {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.Defaults()
	a, err := buildNotifier(cfg)
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	if _, ok := a.(adapter.Nop); !ok {
		t.Errorf("no notify type should give Nop, got %T", a)
	}

	cfg.Notify.Type = "redis"
	cfg.Notify.URL = "redis://127.0.0.1:6379/0"
	cfg.Notify.Channel = "backups"
	a, err = buildNotifier(cfg)
	if err != nil {
		t.Fatalf("buildNotifier(redis): %v", err)
	}
	ra, ok := a.(*redis.Adapter)
	if !ok {
		t.Fatalf("got %T, want *redis.Adapter", a)
	}
	if ra.Channel() != "backups" {
		t.Errorf("channel = %q", ra.Channel())
	}
	_ = a.Close()

	cfg.Notify.Type = "webhook"
	cfg.Notify.URL = "http://127.0.0.1:9/hook"
	a, err = buildNotifier(cfg)
	if err != nil {
		t.Fatalf("buildNotifier(webhook): %v", err)
	}
	if _, ok := a.(*webhook.Adapter); !ok {
		t.Errorf("got %T, want *webhook.Adapter", a)
	}

	cfg.Notify.Type = "redis"
	cfg.Notify.URL = "not a url"
	if _, err := buildNotifier(cfg); err == nil {
		t.Error("expected invalid redis URL to fail")
	}

	cfg.Notify.Type = "smtp"
	if _, err := buildNotifier(cfg); err == nil {
		t.Error("expected unknown type to fail")
	}
}
