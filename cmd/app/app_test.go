package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/DRSN-tech/visual-search/pkg/logger"
)

func TestRun_ConfigErrorExitsNonZero(t *testing.T) {
	t.Setenv("POSTGRES_USER", "search")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "catalog")
	t.Setenv("SEARCH_LIMIT", "50")

	var buf bytes.Buffer
	code := run(logger.NewSlogLoggerWithWriter(&buf, "info"))
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}

	out := buf.String()
	for _, want := range []string{"visual-search dev starting", "failed to load config"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
