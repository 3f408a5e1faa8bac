package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestHelpExitsWithoutStartingLoop(t *testing.T) {
	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "gpucoordd") || !strings.Contains(out.String(), "--config") {
		t.Fatalf("usage text incomplete:\n%s", out.String())
	}
}

func TestRunRejectsBadConfigPath(t *testing.T) {
	if err := run("/does/not/exist.yaml", "", ""); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if _, err := newLogger(lvl); err != nil {
			t.Fatalf("level %s: %v", lvl, err)
		}
	}
	if _, err := newLogger("shouty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	l, err := newLogger("error")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if l.GetLevel() != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", l.GetLevel())
	}
}
