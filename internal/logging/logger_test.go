package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(Options{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Debug("test_message_from_logging_test")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "sourcewatch.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"test_message_from_logging_test"`) {
		t.Fatalf("debug line missing from %s", b)
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(Options{Dir: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(Options{Dir: dir, Level: "warn", Console: true})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("should_not_appear")
	log.Warn("should_appear")
	_ = log.Sync()

	b, _ := os.ReadFile(filepath.Join(dir, "sourcewatch.log"))
	if strings.Contains(string(b), "should_not_appear") || !strings.Contains(string(b), "should_appear") {
		t.Fatalf("level filtering wrong: %s", b)
	}
}
