package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/taskmaster/internal/history"
)

func TestSQLiteSink_SendAndCount(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventLaunch, OccurredAt: time.Now(), Program: "web", PID: 100, Status: "running"},
		{Type: history.EventExit, OccurredAt: time.Now(), Program: "web", ExitCode: 1, Status: "exited with code: 1"},
		{Type: history.EventLaunch, OccurredAt: time.Now(), Program: "worker", PID: 101, Status: "running"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send(%v): %v", e.Type, err)
		}
	}
	n, err := sink.Count(ctx, "web")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 events for web, got %d", n)
	}
}

func TestSQLiteSink_Memory(t *testing.T) {
	sink, err := New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Send(context.Background(), history.Event{Type: history.EventStop, Program: "a"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n, _ := sink.Count(context.Background(), "a"); n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
