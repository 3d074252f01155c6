package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		_ = Initialize("info")
		_ = SetPackageLogLevels(nil)
	})
	return &buf
}

func TestLineFormatAndSortedFields(t *testing.T) {
	buf := capture(t)
	require.NoError(t, Initialize("info"))

	GetLogger("learning").InfoWithFields("search finished",
		Field("score", -12.5),
		Field("iterations", 3),
		Field("arcs", 2),
	)
	assert.Equal(t,
		"[2024-01-01T00:00:00Z] [INFO] learning: search finished | arcs=2 iterations=3 score=-12.5\n",
		buf.String())
}

func TestLevels(t *testing.T) {
	buf := capture(t)
	require.NoError(t, Initialize("warn"))
	logger := GetLogger("inference")

	logger.Debug("hidden")
	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)
	logger.Error("shown too")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] inference: shown 2")
	assert.Contains(t, out, "[ERROR] inference: shown too")
	assert.False(t, logger.Enabled(INFO))
	assert.True(t, logger.Enabled(ERROR))
}

func TestLoggerCreatedBeforeInitializeFollowsLevel(t *testing.T) {
	buf := capture(t)
	logger := GetLogger("evaluation")
	require.NoError(t, Initialize("debug"))
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestPackageLevelOverrides(t *testing.T) {
	buf := capture(t)
	require.NoError(t, Initialize("info", map[string]string{
		"learning.*":      "debug",
		"learning.search": "error",
		"decision":        "warn",
	}))

	GetLogger("learning").Debug("root debug")
	GetLogger("learning.tree").Debug("tree debug")
	GetLogger("learning.search").Warn("search warn")
	GetLogger("decision").Info("decision info")
	GetLogger("netio").Info("netio info")

	out := buf.String()
	assert.Contains(t, out, "root debug")
	assert.Contains(t, out, "tree debug")
	assert.NotContains(t, out, "search warn")
	assert.NotContains(t, out, "decision info")
	assert.Contains(t, out, "netio info")
}

func TestInvalidPackageLevel(t *testing.T) {
	capture(t)
	err := SetPackageLogLevels(map[string]string{"learning": "loud"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "learning")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DEBUG},
		{in: " Info ", want: INFO},
		{in: "warning", want: WARN},
		{in: "ERROR", want: ERROR},
		{in: "fatal", want: FATAL},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	buf := capture(t)
	parent := GetLogger("evaluation")
	child := parent.WithField("session_id", "abc")
	child.WithFields(Field("row", 4)).Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "child | row=4 session_id=abc"))
	assert.True(t, strings.HasSuffix(lines[1], "parent"))
}

func TestCallFieldsOverridePersistentFields(t *testing.T) {
	buf := capture(t)
	GetLogger("x").WithField("k", "old").InfoWithFields("msg", Field("k", "new"))
	assert.Contains(t, buf.String(), "| k=new\n")
}

func TestWithContextAddsSpanIDs(t *testing.T) {
	buf := capture(t)
	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("1112131415161718")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	GetLogger("learning").WithContext(ctx).Info("traced")
	assert.Contains(t, buf.String(), "span_id=1112131415161718 trace_id=0102030405060708090a0b0c0d0e0f10")

	buf.Reset()
	GetLogger("learning").WithContext(context.Background()).Info("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestErrorWithErrAndFatal(t *testing.T) {
	buf := capture(t)
	GetLogger("cli").ErrorWithErr("load failed", errors.New("boom"))
	assert.Contains(t, buf.String(), "[ERROR] cli: load failed | error=boom")

	code := -1
	orig := exitFunc
	exitFunc = func(c int) { code = c }
	defer func() { exitFunc = orig }()
	GetLogger("cli").Fatal("giving up")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL] cli: giving up")
}

func TestPrintfWithoutArgsKeepsPercent(t *testing.T) {
	buf := capture(t)
	GetLogger("x").Info("100% done")
	assert.Contains(t, buf.String(), "100% done")
}
