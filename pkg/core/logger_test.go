package core

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{" warning ", LogLevelWarn},
		{"error", LogLevelError},
		{"off", LogLevelSilent},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger("reportlens", LogLevelWarn)
	l.SetOutput(&buf)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below level were written: %q", out)
	}
	if !strings.Contains(out, "[reportlens] [WARN] warn 3") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[reportlens] [ERROR] error 4") {
		t.Errorf("missing error line: %q", out)
	}

	buf.Reset()
	l.SetLevel(LogLevelSilent)
	l.Error("hidden")
	if buf.Len() != 0 {
		t.Errorf("silent logger wrote %q", buf.String())
	}
}

func TestPrintfLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewPrintfLogger("cli")
	l.SetOutput(&buf)

	l.Debug("parsed %d findings", 3)
	if got := buf.String(); got != "[cli] parsed 3 findings\n" {
		t.Errorf("output = %q", got)
	}
}

func TestLoggerFromVerbose(t *testing.T) {
	if _, ok := LoggerFromVerbose("x", true).(*PrintfLogger); !ok {
		t.Error("verbose should return *PrintfLogger")
	}
	l, ok := LoggerFromVerbose("x", false).(*DefaultLogger)
	if !ok {
		t.Fatal("non-verbose should return *DefaultLogger")
	}
	if got := l.Level(); got != LogLevelWarn {
		t.Errorf("Level() = %v, want %v", got, LogLevelWarn)
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelError, "ERROR"},
		{LogLevelSilent, "SILENT"},
		{LogLevel(9), "LogLevel(9)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int32(tt.level), got, tt.want)
		}
	}
}
