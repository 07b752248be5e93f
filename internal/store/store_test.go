package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func TestOpenCreatesSchema(t *testing.T) {
	s, _ := openTestStore(t)

	for _, table := range []string{"runs", "_migrations"} {
		var name string
		err := s.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var journalMode string
	if err := s.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	for i := 0; i < 2; i++ {
		s, err := Open(dbPath, zerolog.Nop())
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		var count int
		if err := s.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("migrations recorded = %d, want 1", count)
		}
		s.Close()
	}
}

func TestRunLifecycle(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	r, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusRunning || !r.ExpiresAt.IsZero() || r.CreatedAt.IsZero() {
		t.Errorf("new run = %+v", r)
	}

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := s.CompleteRun(ctx, "r1", "/out/audio_overlay_r1_5.mp4", expires); err != nil {
		t.Fatal(err)
	}
	r, _ = s.GetRun(ctx, "r1")
	if r.Status != StatusSucceeded || r.OutputName != "audio_overlay_r1_5.mp4" || !r.ExpiresAt.Equal(expires) {
		t.Errorf("completed run = %+v", r)
	}

	found, err := s.FindByOutput(ctx, "audio_overlay_r1_5.mp4")
	if err != nil || found.ID != "r1" {
		t.Errorf("FindByOutput() = %+v, %v", found, err)
	}

	if err := s.MarkExpired(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindByOutput(ctx, "audio_overlay_r1_5.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired output still found: %v", err)
	}
}

func TestFailRun(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	s.CreateRun(ctx, "r1")
	if err := s.FailRun(ctx, "r1", "clip[0]: engine failure"); err != nil {
		t.Fatal(err)
	}
	r, _ := s.GetRun(ctx, "r1")
	if r.Status != StatusFailed || r.Error != "clip[0]: engine failure" {
		t.Errorf("failed run = %+v", r)
	}

	if err := s.FailRun(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailRun(missing) error = %v", err)
	}
	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v", err)
	}
}

func TestExpiredRuns(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"old", "fresh", "failed"} {
		s.CreateRun(ctx, id)
	}
	s.CompleteRun(ctx, "old", "/out/old.mp4", now.Add(-time.Minute))
	s.CompleteRun(ctx, "fresh", "/out/fresh.mp4", now.Add(time.Hour))
	s.FailRun(ctx, "failed", "boom")

	runs, err := s.ExpiredRuns(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "old" {
		t.Errorf("expired = %+v", runs)
	}
}

func TestInterruptedRunsMarkedFailedOnOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.CreateRun(context.Background(), "stuck")
	s.Close()

	s, err = Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	r, err := s.GetRun(context.Background(), "stuck")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusFailed || r.Error != "interrupted by restart" {
		t.Errorf("run = %+v", r)
	}
}

func TestListRuns(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		s.CreateRun(ctx, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("runs = %+v", runs)
	}
}
