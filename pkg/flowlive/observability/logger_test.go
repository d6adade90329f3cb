package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJSONLogger returns a debug-level JSON logger writing to buf.
func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// lastRecord decodes the last JSON line written to buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := EnrichLogger(newJSONLogger(&buf), "chat-1", "flow-9")
	logger.Info("hello")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "chat-1", rec["chat_id"])
	assert.Equal(t, "flow-9", rec["flow_id"])
}

func TestEnrichLogger_OmitsEmpty(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf)
	assert.Same(t, base, EnrichLogger(base, "", ""))

	EnrichLogger(base, "", "flow-1").Info("x")
	rec := lastRecord(t, &buf)
	_, hasChat := rec["chat_id"]
	assert.False(t, hasChat)
	assert.Equal(t, "flow-1", rec["flow_id"])
}

func TestEnrichLogger_Nil(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "c", "f"))
}

func TestLogValidation_LevelByOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	LogValidation(logger, 5, 0, true, 1.5)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "flow validated", rec["msg"])

	LogValidation(logger, 5, 2, true, 1.5)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "INFO", rec["level"])
	assert.EqualValues(t, 2, rec["issues"])
}

func TestLogConnectionClosed_WarnsOnLock(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	LogConnectionClosed(logger, "s1", 1000, "", false)
	assert.Equal(t, "INFO", lastRecord(t, &buf)["level"])

	LogConnectionClosed(logger, "s1", 1008, "policy", true)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.EqualValues(t, 1008, rec["code"])
	assert.Equal(t, true, rec["lock_input"])
}

func TestLogHelpers_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	LogFormValidatorFailed(logger, "llm_1", "llm", errors.New("kb missing"))
	rec := lastRecord(t, &buf)
	assert.Equal(t, "llm_1", rec["node_id"])
	assert.Equal(t, "kb missing", rec["error"])

	LogConnectionOpened(logger, "ws://x", "s1")
	assert.Equal(t, "ws://x", lastRecord(t, &buf)["url"])

	LogEventDropped(logger, "unknown node", "stream", "m1")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "unknown node", rec["reason"])
	assert.Equal(t, "m1", rec["message_id"])

	LogSendFailed(logger, "input", errors.New("not connected"))
	assert.Equal(t, "input", lastRecord(t, &buf)["action"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogValidation(nil, 1, 1, false, 0)
		LogFormValidatorFailed(nil, "n", "t", errors.New("x"))
		LogConnectionOpened(nil, "u", "s")
		LogConnectionClosed(nil, "s", 1000, "", false)
		LogEventDropped(nil, "r", "c", "m")
		LogSendFailed(nil, "a", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 4.0)
}
