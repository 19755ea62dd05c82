package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/chainminer/internal/models"
)

func TestFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer fl.Close()

	if !strings.HasPrefix(filepath.Base(fl.RunFile()), "run-") {
		t.Errorf("unexpected run file name %q", fl.RunFile())
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log symlink missing: %v", err)
	}
	if target != filepath.Base(fl.RunFile()) {
		t.Errorf("latest.log -> %q, want %q", target, filepath.Base(fl.RunFile()))
	}
}

func TestFileLogger_WritesEvents(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}

	fl.LogDebug("hidden")
	fl.LogInfo("visible")
	fl.LogBucketComplete(models.BucketSummary{
		Bucket: "2018-03-03", Events: 9, Cases: 5, Transitions: 14, Distinct: 9, Edges: 6, Duration: time.Second,
	})
	fl.LogBucketComplete(models.BucketSummary{Bucket: "2018-03-04", Err: errors.New("invalid event ordering")})
	fl.LogRunSummary(models.RunSummary{RunID: "abc", Source: "x.csv", Buckets: 2, Failed: 1, FailedBuckets: []string{"2018-03-04"}})
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "hidden") {
		t.Error("debug message written at info level")
	}
	for _, want := range []string{
		"=== chainminer Run Log ===",
		"[INFO] visible",
		"2018-03-03 complete: duration 1.0s, cases: 5, transitions: 14, edges: 6",
		"2018-03-04 failed: invalid event ordering",
		"=== MINING SUMMARY ===",
		"Status:       PARTIAL (1/2 buckets mined)",
		"Failed:       2018-03-04",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in run log:\n%s", want, out)
		}
	}

	detail, err := os.ReadFile(filepath.Join(dir, "buckets", "bucket-2018-03-03.log"))
	if err != nil {
		t.Fatalf("bucket detail missing: %v", err)
	}
	if !strings.Contains(string(detail), "Transitions: 14 (9 distinct)") {
		t.Errorf("unexpected bucket detail:\n%s", detail)
	}
}

func TestFileLogger_CloseTwice(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "debug")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	fl.LogInfo("after close is dropped")
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiLogger(NewConsoleLogger(&a, "info"), nil, NewConsoleLogger(&b, "warn"))

	m.LogInfo("info line")
	m.LogWarn("warn line")
	m.LogRunSummary(models.RunSummary{Buckets: 1})

	if !strings.Contains(a.String(), "info line") || !strings.Contains(a.String(), "warn line") {
		t.Errorf("first logger missing lines:\n%s", a.String())
	}
	if strings.Contains(b.String(), "info line") {
		t.Error("second logger should filter info")
	}
	if !strings.Contains(b.String(), "warn line") {
		t.Error("second logger missing warn line")
	}
	if strings.Contains(b.String(), "Mining Summary") {
		t.Error("summary is info level and should be filtered by warn logger")
	}
}

func TestRunSummaryStatus(t *testing.T) {
	tests := []struct {
		s    models.RunSummary
		want string
	}{
		{models.RunSummary{Buckets: 3}, "SUCCESS"},
		{models.RunSummary{Buckets: 3, Failed: 1}, "PARTIAL"},
		{models.RunSummary{Buckets: 3, Failed: 3}, "FAILED"},
	}
	for _, tt := range tests {
		if got := tt.s.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
	}
}
