package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// NewBufferLogger returns a text logger at debug level writing to the
// returned buffer.
func NewBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// NewJSONBufferLogger is NewBufferLogger with one JSON object per line, for
// tests that assert on structured fields with LogEntry.
func NewJSONBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// LogEntry returns the first JSON log record with the given message.
func LogEntry(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", sc.Text(), err)
		}
		if rec[slog.MessageKey] == msg {
			return rec
		}
	}
	t.Fatalf("no %q log record in:\n%s", msg, buf.String())
	return nil
}
