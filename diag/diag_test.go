package diag

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/klswkj/buildtarget/berr"
)

func newCapture() (*bytes.Buffer, *log.Logger) {
	var buf bytes.Buffer
	return &buf, log.New(&buf, "", 0)
}

func TestVerboseDroppedUnlessRequested(t *testing.T) {
	buf, out := newCapture()
	New(out, false).Verbose("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("verbose output leaked: %q", buf.String())
	}

	buf, out = newCapture()
	New(out, true).Verbose("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("verbose output missing: %q", buf.String())
	}
}

func TestEmitRendersSeverityPrefixedListInOrder(t *testing.T) {
	buf, out := newCapture()
	d := &berr.Diagnostics{}
	d.Warn(berr.New(berr.ScopeViolation, "first"))
	d.Fatal(berr.New(berr.GraphError, "second"))

	if fatal := New(out, false).Emit(d); !fatal {
		t.Error("Emit should report a fatal diagnostic was present")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 diagnostic lines, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "warning: ") || !strings.HasPrefix(lines[1], "error: ") {
		t.Errorf("severity prefixes wrong: %v", lines)
	}
}
