package obs

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	restore := SetLogger(NewLogger(&buf, zapcore.DebugLevel))
	defer restore()

	Logger().Info("hello", zap.String("course_id", "c1"))

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v (%s)", err, line)
	}
	for _, key := range []string{"ts", "level", "msg", "course_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
	if entry["level"] != "info" || entry["msg"] != "hello" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zapcore.DebugLevel {
		t.Fatal("expected debug")
	}
	if ParseLevel("nonsense") != zapcore.InfoLevel {
		t.Fatal("expected info fallback")
	}
}
