package archive

import (
	"context"
	"log/slog"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestSweeperCollectsZeroRef(t *testing.T) {
	// WHAT: The background sweeper removes zero-ref resources and Close drains.
	// WHY: GC must run off the delete path without leaking goroutines.
	s := openTestStore(t)
	ctx := context.Background()

	h, _ := s.PutResource(ctx, []byte("doomed"), "image/png")
	s.ReleaseResource(ctx, h)

	sw := NewSweeper(s, 5*time.Millisecond, slog.Default())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n := refCount(t, s.DB(), h); n == -1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := refCount(t, s.DB(), h); n != -1 {
		t.Errorf("resource not swept, ref_count %d", n)
	}
	// Close is idempotent.
	if err := sw.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSweeperFinalSweepOnClose(t *testing.T) {
	// WHAT: Close performs one last sweep even if the ticker never fired.
	s := openTestStore(t)
	ctx := context.Background()

	h, _ := s.PutResource(ctx, []byte("late"), "image/png")
	s.ReleaseResource(ctx, h)

	sw := NewSweeper(s, time.Hour, nil)
	sw.Close()

	if n := refCount(t, s.DB(), h); n != -1 {
		t.Errorf("final sweep missed resource, ref_count %d", n)
	}
}
