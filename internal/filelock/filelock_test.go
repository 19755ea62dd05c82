package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("list %s: %v", dir, err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestLockAndWrite_WaitsForHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgd_graph.csv")

	release, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- LockAndWrite(path, []byte("from,to\n")) }()

	select {
	case err := <-done:
		t.Fatalf("write finished while the lock was held (err=%v)", err)
	case <-time.After(100 * time.Millisecond):
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("table written while the lock was held: %v", err)
	}

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("LockAndWrite failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "from,to\n" {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := os.Stat(path + LockSuffix); err != nil {
		t.Errorf("lock file should stay behind: %v", err)
	}
}

func TestReplace_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "2018-03-01", "mr_counts.csv")

	if err := Replace(path, []byte("transition,count\n")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "transition,count\n" {
		t.Errorf("unexpected content %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestReplace_KeepsModeOfExistingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := Replace(path, []byte("new")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("expected replaced content, got %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600 to be kept, got %v", info.Mode().Perm())
	}
}

func TestReplace_FailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory cannot be replaced by a file.
	path := filepath.Join(dir, "graph.csv")
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0755); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := Replace(path, []byte("data")); err == nil {
		t.Fatal("expected Replace to fail")
	}
	if _, err := os.Stat(filepath.Join(path, "keep")); err != nil {
		t.Errorf("target was modified: %v", err)
	}
	assertNoTempFiles(t, dir)
}

func TestLockAndWrite_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "totals.csv")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := strings.Repeat(fmt.Sprintf("%d", i), 1024)
			if err := LockAndWrite(path, []byte(content)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("LockAndWrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(data) != 1024 {
		t.Fatalf("expected 1024 bytes, got %d", len(data))
	}
	if strings.Trim(string(data), string(data[0])) != "" {
		t.Error("file contains interleaved writes")
	}
	assertNoTempFiles(t, dir)
}
