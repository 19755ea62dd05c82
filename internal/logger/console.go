// Package logger provides logging implementations for chainminer runs.
//
// The logger package offers structured logging of mining progress at the
// bucket and run-summary levels. Implementations are thread-safe and support
// various output destinations (console, file, several at once).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/chainminer/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs mining progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}

	if w == os.Stdout || w == os.Stderr {
		// fatih/color already honours NO_COLOR and non-TTY output
		return !color.NoColor
	}

	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}

	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), label, message))
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// LogBucketStart logs the start of mining a bucket at DEBUG level.
// Format: "[HH:MM:SS] Mining <bucket>: <n> events"
func (cl *ConsoleLogger) LogBucketStart(bucket string, events int) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	name := bucket
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(bucket)
	}
	cl.write(fmt.Sprintf("[%s] Mining %s: %d %s\n", timestamp(), name, events, plural(events, "event", "events")))
}

// LogBucketComplete logs the outcome of a bucket at INFO level, or ERROR if it failed.
// Format: "[HH:MM:SS] <bucket> complete (<duration>) cases: N, transitions: N, edges: N"
func (cl *ConsoleLogger) LogBucketComplete(summary models.BucketSummary) {
	if cl.writer == nil {
		return
	}

	if summary.Failed() {
		if !cl.shouldLog("error") {
			return
		}
		status := "failed"
		if cl.colorOutput {
			status = color.New(color.FgRed).Sprint(status)
		}
		cl.write(fmt.Sprintf("[%s] %s %s: %v\n", timestamp(), summary.Bucket, status, summary.Err))
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	durationStr := formatDuration(summary.Duration)
	var message string
	if cl.colorOutput {
		name := color.New(color.Bold).Sprint(summary.Bucket)
		complete := color.New(color.FgGreen).Sprint("complete")
		message = fmt.Sprintf("[%s] %s %s (%s) %s\n", timestamp(), name, complete, durationStr, formatColorizedBucketMetrics(summary))
	} else {
		message = fmt.Sprintf("[%s] %s complete (%s) %s\n", timestamp(), summary.Bucket, durationStr, formatBucketMetrics(summary))
	}
	cl.write(message)
}

// LogProgress logs how many buckets have been mined so far at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 5/10 (50%) buckets"
func (cl *ConsoleLogger) LogProgress(done, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(done)
	cl.write(fmt.Sprintf("[%s] Progress: %s buckets\n", timestamp(), pb.Render()))
}

// LogRunSummary logs the run summary with totals at INFO level.
func (cl *ConsoleLogger) LogRunSummary(summary models.RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	ts := timestamp()
	header := "=== Mining Summary ==="
	failed := fmt.Sprintf("Failed buckets: %d", summary.Failed)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		if summary.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", ts, header)
	if summary.Source != "" {
		fmt.Fprintf(&b, "[%s] Source: %s\n", ts, summary.Source)
	}
	if summary.RunID != "" {
		fmt.Fprintf(&b, "[%s] Run: %s\n", ts, summary.RunID)
	}
	fmt.Fprintf(&b, "[%s] Events: %d\n", ts, summary.Events)
	fmt.Fprintf(&b, "[%s] Cases: %d\n", ts, summary.Cases)
	fmt.Fprintf(&b, "[%s] Buckets: %d\n", ts, summary.Buckets)
	fmt.Fprintf(&b, "[%s] %s\n", ts, failed)
	fmt.Fprintf(&b, "[%s] Transitions: %d\n", ts, summary.Transitions)
	fmt.Fprintf(&b, "[%s] Graph edges: %d\n", ts, summary.Edges)
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(summary.Duration))
	for _, bucket := range summary.FailedBuckets {
		fmt.Fprintf(&b, "[%s]   - %s\n", ts, bucket)
	}

	cl.write(b.String())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m". Sub-second durations render in milliseconds.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogInfo(string)                         {}
func (n *NoOpLogger) LogWarn(string)                         {}
func (n *NoOpLogger) LogError(string)                        {}
func (n *NoOpLogger) LogDebug(string)                        {}
func (n *NoOpLogger) LogBucketStart(string, int)             {}
func (n *NoOpLogger) LogBucketComplete(models.BucketSummary) {}
func (n *NoOpLogger) LogProgress(int, int)                   {}
func (n *NoOpLogger) LogRunSummary(models.RunSummary)        {}
