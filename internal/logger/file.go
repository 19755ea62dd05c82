package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/chainminer/internal/models"
)

// FileLogger logs mining runs to files in a log directory.
// It creates a timestamped log file per run, a per-bucket detail file under
// buckets/, and maintains a latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir     string
	runLog     *os.File
	runFile    string
	bucketsDir string
	logLevel   string
	mu         sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .chainminer/logs at level info.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".chainminer", "logs"), "info")
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	bucketsDir := filepath.Join(logDir, "buckets")
	if err := os.MkdirAll(bucketsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create buckets directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log; the nanosecond suffix keeps runs started in the same second apart
	now := time.Now()
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", now.Format("20060102-150405")))
	if _, err := os.Stat(runFile); err == nil {
		runFile = filepath.Join(logDir, fmt.Sprintf("run-%s-%09d.log", now.Format("20060102-150405"), now.Nanosecond()))
	}

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:     logDir,
		runLog:     file,
		runFile:    runFile,
		bucketsDir: bucketsDir,
		logLevel:   normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== chainminer Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", now.Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message.
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogBucketStart logs the start of mining a bucket at DEBUG level.
func (fl *FileLogger) LogBucketStart(bucket string, events int) {
	if !fl.shouldLog("debug") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Mining %s: %d %s\n",
		time.Now().Format("15:04:05"), bucket, events, plural(events, "event", "events")))
}

// LogBucketComplete writes a one-line outcome to the run log and a detail
// file to buckets/bucket-<key>.log.
func (fl *FileLogger) LogBucketComplete(summary models.BucketSummary) {
	ts := time.Now().Format("15:04:05")
	if summary.Failed() {
		if fl.shouldLog("error") {
			fl.writeRunLog(fmt.Sprintf("[%s] %s failed: %v\n", ts, summary.Bucket, summary.Err))
		}
	} else if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s complete: duration %.1fs, %s\n",
			ts, summary.Bucket, summary.Duration.Seconds(), formatBucketMetrics(summary)))
	}

	if err := fl.writeBucketLog(summary); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

func (fl *FileLogger) writeBucketLog(summary models.BucketSummary) error {
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(summary.Bucket)
	path := filepath.Join(fl.bucketsDir, fmt.Sprintf("bucket-%s.log", name))

	var b strings.Builder
	fmt.Fprintf(&b, "=== Bucket %s ===\n", summary.Bucket)
	fmt.Fprintf(&b, "Events: %d\n", summary.Events)
	fmt.Fprintf(&b, "Cases: %d\n", summary.Cases)
	fmt.Fprintf(&b, "Transitions: %d (%d distinct)\n", summary.Transitions, summary.Distinct)
	fmt.Fprintf(&b, "Edges: %d\n", summary.Edges)
	fmt.Fprintf(&b, "Duration: %.3fs\n", summary.Duration.Seconds())
	if summary.Err != nil {
		fmt.Fprintf(&b, "\nError:\n%v\n", summary.Err)
	}
	fmt.Fprintf(&b, "\nCompleted at: %s\n", time.Now().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write bucket log: %w", err)
	}
	return nil
}

// LogProgress is a no-op; progress bars are console-only.
func (fl *FileLogger) LogProgress(done, total int) {}

// LogRunSummary logs the run summary with final statistics at INFO level.
func (fl *FileLogger) LogRunSummary(summary models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}

	ts := time.Now().Format("15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] === MINING SUMMARY ===\n", ts)
	fmt.Fprintf(&b, "[%s] Run:          %s\n", ts, summary.RunID)
	fmt.Fprintf(&b, "[%s] Source:       %s\n", ts, summary.Source)
	fmt.Fprintf(&b, "[%s] Events:       %d\n", ts, summary.Events)
	fmt.Fprintf(&b, "[%s] Cases:        %d\n", ts, summary.Cases)
	fmt.Fprintf(&b, "[%s] Buckets:      %d\n", ts, summary.Buckets)
	fmt.Fprintf(&b, "[%s] Transitions:  %d\n", ts, summary.Transitions)
	fmt.Fprintf(&b, "[%s] Graph edges:  %d\n", ts, summary.Edges)
	fmt.Fprintf(&b, "[%s] Total time:   %.1fs\n", ts, summary.Duration.Seconds())
	fmt.Fprintf(&b, "[%s] Status:       %s (%d/%d buckets mined)\n",
		ts, summary.Status(), summary.Buckets-summary.Failed, summary.Buckets)
	if len(summary.FailedBuckets) > 0 {
		fmt.Fprintf(&b, "[%s] Failed:       %s\n", ts, strings.Join(summary.FailedBuckets, ", "))
	}
	fmt.Fprintf(&b, "[%s] Completed at: %s\n", ts, time.Now().Format(time.RFC3339))

	fl.writeRunLog(b.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
