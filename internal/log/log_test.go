package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, level Level) *Logger {
	l := New(buf, level)
	l.now = func() time.Time { return time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC) }
	return l
}

func TestLogger_FormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelInfo)

	l.Info("read schedule", "name", "schema", "events", 12)

	assert.Equal(t, "2024-01-15T08:00:00Z [INFO] read schedule name=schema events=12\n", buf.String())
}

func TestLogger_QuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelInfo)

	l.Info("filtered", "schedule", "my schedule", "empty", "")

	assert.Contains(t, buf.String(), `schedule="my schedule"`)
	assert.Contains(t, buf.String(), `empty=""`)
}

func TestLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("also shown", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[WARN] shown")
	assert.Contains(t, lines[1], "[ERROR] also shown err=boom")
}

func TestLogger_OddKeyValueIgnored(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelDebug)

	l.Debug("msg", "a", 1, "dangling")

	assert.Equal(t, "2024-01-15T08:00:00Z [DEBUG] msg a=1\n", buf.String())
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.SetLevel(LevelDebug)
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.SetLevel(LevelDebug)
		l.Debug("dropped", "k", "v")
		l.Error("dropped", errors.New("boom"))
	})
}
