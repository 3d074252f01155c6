// Package logging provides the leveled, structured logger used across
// riskgraph.
//
// Initialize once at startup, then take a named logger per package:
//
//	logging.Initialize("info", map[string]string{"learning": "debug"})
//	logger := logging.GetLogger("learning")
//	logger.InfoWithFields("search finished",
//	    logging.Field("iterations", n),
//	    logging.Field("score", score),
//	)
//
// Per-package overrides accept exact names ("learning") and wildcard
// patterns ("learning.*"). The most specific match wins.
//
// A logger built with WithContext adds the trace_id and span_id of the
// active OpenTelemetry span, so log lines can be joined with exported traces.
//
// Loggers are immutable: WithField and WithContext return copies, and a
// single logger may be shared between goroutines.
//
// Set LOG_TIMESTAMP to pin the timestamp in tests, or redirect output with
// SetOutput.
package logging

import (
	"context"
	"os"
)

var (
	globalLevel = INFO
	// exitFunc is replaced in tests.
	exitFunc = os.Exit
)

// Initialize sets the default level and, optionally, per-package overrides.
// Unknown default levels fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}
	levelMu.Lock()
	globalLevel = level
	levelMu.Unlock()

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		return SetPackageLogLevels(packageLevels[0])
	}
	return nil
}

// GetLogger returns a logger for the named package. The level is resolved
// on every call, so loggers created before Initialize follow it.
func GetLogger(name string) *Logger {
	return &Logger{
		name:   name,
		fields: make(map[string]interface{}),
	}
}

func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	levelMu.RLock()
	defer levelMu.RUnlock()
	return level >= globalLevel
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.shouldLog(level)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs msg with err attached as the error field.
func (l *Logger) ErrorWithErr(msg string, err error) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, Field("error", err))
	}
}

func (l *Logger) clone() *Logger {
	return &Logger{
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
}

// WithName returns a copy of the logger under a different package name.
func (l *Logger) WithName(name string) *Logger {
	c := l.clone()
	c.name = name
	return c
}

// WithField returns a copy that adds key=value to every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	c := l.clone()
	c.fields[key] = value
	return c
}

func (l *Logger) WithFields(fields ...LogField) *Logger {
	c := l.clone()
	for _, f := range fields {
		c.fields[f.Key] = f.Value
	}
	return c
}

// WithContext returns a copy that tags every line with the trace and span of
// the span active in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	c := l.clone()
	c.ctx = ctx
	return c
}

func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// logWithFields merges context, persistent and call fields; later sources
// win on key collisions.
func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	merged := l.baseFields()
	if len(fields) > 0 && merged == nil {
		merged = make(map[string]interface{}, len(fields))
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	l.writeLog(level, msg, merged)
}
