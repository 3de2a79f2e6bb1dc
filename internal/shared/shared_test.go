package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestIDs(t *testing.T) {
	t.Run("GenerateID is unique", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b {
			t.Errorf("expected distinct ids, got %s twice", a)
		}
		if IsTempID(a) {
			t.Errorf("server-style id %s should not be a temp id", a)
		}
	})

	t.Run("GenerateTempID has prefix", func(t *testing.T) {
		id := GenerateTempID()
		if !strings.HasPrefix(id, TempIDPrefix) {
			t.Errorf("expected prefix %q, got %s", TempIDPrefix, id)
		}
		if !IsTempID(id) {
			t.Errorf("expected %s to be a temp id", id)
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  log.Level
	}{
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "mixed case warn", input: " WARN ", want: log.WarnLevel},
		{name: "error", input: "error", want: log.ErrorLevel},
		{name: "unknown falls back to info", input: "chatty", want: log.InfoLevel},
		{name: "empty falls back to info", input: "", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "component", "hub")
	logger.Info("connected")

	if !strings.Contains(buf.String(), "component=hub") {
		t.Errorf("expected child logger fields in output, got %q", buf.String())
	}
}
