package console

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/crmgate/internal/core/ui"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNotifier_Levels(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(newLogger(&buf))

	n.Notify("saved", ui.SeveritySuccess, 2*time.Second)
	n.Notify("failed", ui.SeverityError, 0)

	out := buf.String()
	if !strings.Contains(out, `level=INFO msg=saved`) {
		t.Errorf("expected info line for success, got %q", out)
	}
	if !strings.Contains(out, `level=ERROR msg=failed`) {
		t.Errorf("expected error line, got %q", out)
	}
	if !strings.Contains(out, "duration=2s") {
		t.Errorf("expected duration attr, got %q", out)
	}
}

func TestNavigator(t *testing.T) {
	var buf bytes.Buffer
	n := NewNavigator("dashboard", newLogger(&buf))

	if got := n.CurrentRoute(); got != "dashboard" {
		t.Errorf("CurrentRoute() = %q", got)
	}

	if err := n.NavigateTo(context.Background(), "companies", map[string]string{"page": "2"}); err != nil {
		t.Fatal(err)
	}
	if got := n.CurrentRoute(); got != "companies?page=2" {
		t.Errorf("CurrentRoute() = %q, want companies?page=2", got)
	}

	n.Reload()
	if n.Reloads() != 1 {
		t.Errorf("Reloads() = %d", n.Reloads())
	}
}

func TestStaleNotifier(t *testing.T) {
	var buf bytes.Buffer
	s := NewStaleNotifier(newLogger(&buf))

	s.ShowStale(true)
	if !strings.Contains(buf.String(), "Newer data is available") {
		t.Errorf("expected stale warning, got %q", buf.String())
	}
}
