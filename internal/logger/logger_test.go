package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *zapcore.Level
	}{
		{"debug", levelPtr(zapcore.DebugLevel)},
		{" INFO ", levelPtr(zapcore.InfoLevel)},
		{"warn", levelPtr(zapcore.WarnLevel)},
		{"warning", levelPtr(zapcore.WarnLevel)},
		{"error", levelPtr(zapcore.ErrorLevel)},
		{"", nil},
		{"verbose", nil},
	}

	for _, tt := range tests {
		got := parseLevel(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseLevel(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestNewAndWith(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		l := New("debug", pretty)
		if l == nil {
			t.Fatal("New() returned nil")
		}
		child := With(l, String("run_id", "abc"))
		if child == l {
			t.Error("With() should return a new logger")
		}
		child.Debug("test", Int("n", 1))
	}
}

func TestWithNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", Bool("ok", true))
	if With(l) == nil {
		t.Error("With() returned nil")
	}
}

func levelPtr(l zapcore.Level) *zapcore.Level { return &l }
