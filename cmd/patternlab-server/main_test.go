package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patternlab.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunMissingConfig(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run = %v, want a config error", err)
	}
}

func TestRunBadTimeframe(t *testing.T) {
	path := writeConfig(t, "market_data:\n  default_timeframe: 7x\n")
	err := run(context.Background(), path, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "default_timeframe") {
		t.Errorf("run = %v, want a timeframe error", err)
	}
}

// A listen failure comes back as an error after the run store was opened,
// so the deferred cleanup in run still executes.
func TestRunReturnsListenError(t *testing.T) {
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	path := writeConfig(t, fmt.Sprintf(`storage:
  data_dir: %s
  sqlite_path: %s
server:
  host: 127.0.0.1
  port: %d
  grpc_port: %d
`, dir, dbPath, port, port))

	err = run(context.Background(), path, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "listening on") {
		t.Fatalf("run = %v, want a listen error", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("run store was not opened: %v", err)
	}
}
