package logger

import "github.com/harrison/chainminer/internal/models"

// Logger is the set of events a mining run reports.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogDebug(message string)
	LogBucketStart(bucket string, events int)
	LogBucketComplete(summary models.BucketSummary)
	LogProgress(done, total int)
	LogRunSummary(summary models.RunSummary)
}

// MultiLogger fans every call out to several loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogBucketStart(bucket string, events int) {
	for _, l := range m.loggers {
		l.LogBucketStart(bucket, events)
	}
}

func (m *MultiLogger) LogBucketComplete(summary models.BucketSummary) {
	for _, l := range m.loggers {
		l.LogBucketComplete(summary)
	}
}

func (m *MultiLogger) LogProgress(done, total int) {
	for _, l := range m.loggers {
		l.LogProgress(done, total)
	}
}

func (m *MultiLogger) LogRunSummary(summary models.RunSummary) {
	for _, l := range m.loggers {
		l.LogRunSummary(summary)
	}
}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
)
