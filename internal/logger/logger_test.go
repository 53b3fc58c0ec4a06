package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New("debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}

	log, err = New("")
	if err != nil {
		t.Fatalf("New with empty level: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("default level should be info")
	}

	if _, err := New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
