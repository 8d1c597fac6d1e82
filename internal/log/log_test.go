package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Info("ingest started", "document_id", "doc-1")

	out := buf.String()
	if !strings.Contains(out, "ingest started") {
		t.Errorf("message missing: %s", out)
	}
	if !strings.Contains(out, "document_id=doc-1") {
		t.Errorf("attribute missing: %s", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("search done", "results", 3)

	if !strings.Contains(buf.String(), `"msg":"search done"`) {
		t.Errorf("not JSON output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Debug("should be filtered")
	logger.Info("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug entry not filtered: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("info entry missing: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.With("component", "chunker").Info("split")

	if !strings.Contains(buf.String(), "component=chunker") {
		t.Errorf("component attribute missing: %s", buf.String())
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	logger.Error("also discarded")
}
