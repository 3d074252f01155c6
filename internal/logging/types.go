package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LogLevel is a message severity.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// LogField is a structured key/value pair.
type LogField struct {
	Key   string
	Value interface{}
}

func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Logger writes leveled lines tagged with a package name.
type Logger struct {
	name   string
	fields map[string]interface{}
	ctx    context.Context // source of trace/span IDs
}

var (
	levelMu          sync.RWMutex
	packageLogLevels = make(map[string]LogLevel)
)

// SetPackageLogLevels replaces all per-package overrides. Keys are package
// names or "prefix.*" patterns.
func SetPackageLogLevels(levels map[string]string) error {
	parsed := make(map[string]LogLevel, len(levels))
	for pkg, levelStr := range levels {
		level, err := ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		parsed[pkg] = level
	}

	levelMu.Lock()
	defer levelMu.Unlock()
	packageLogLevels = parsed
	return nil
}

// GetPackageLogLevel returns the override for packageName, or -1 if none
// applies.
func GetPackageLogLevel(packageName string) LogLevel {
	levelMu.RLock()
	defer levelMu.RUnlock()

	if level, ok := packageLogLevels[packageName]; ok {
		return level
	}
	var patterns []string
	for pattern := range packageLogLevels {
		if matchesPattern(packageName, pattern) {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return LogLevel(-1)
	}
	// Longest pattern is the most specific.
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	return packageLogLevels[patterns[0]]
}

// matchesPattern: "learning.*" matches "learning" and "learning.search".
func matchesPattern(packageName, pattern string) bool {
	if packageName == pattern {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return packageName == prefix || strings.HasPrefix(packageName, prefix+".")
	}
	return false
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(levelStr string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return -1, fmt.Errorf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", levelStr)
	}
}
