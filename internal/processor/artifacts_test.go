package processor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestArtifactNaming(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(dir, "run-1", zerolog.Nop())

	first, err := a.Allocate("clip", ".mp4")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := a.Allocate("concat_list", ".txt")

	if filepath.Base(first) != "clip_run-1_1.mp4" {
		t.Errorf("first = %s", first)
	}
	if filepath.Base(second) != "concat_list_run-1_2.txt" {
		t.Errorf("second = %s", second)
	}
	if !filepath.IsAbs(first) {
		t.Errorf("%s is not absolute", first)
	}
}

func TestArtifactRunsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(dir, "run-a", zerolog.Nop())
	b := NewArtifacts(dir, "run-b", zerolog.Nop())

	pa, _ := a.Allocate("clip", ".mp4")
	pb, _ := b.Allocate("clip", ".mp4")
	if pa == pb {
		t.Fatalf("both runs allocated %s", pa)
	}
}

func TestArtifactReleaseAndCleanup(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(dir, "run", zerolog.Nop())

	var paths []string
	for i := 0; i < 3; i++ {
		p, _ := a.Allocate("clip", ".mp4")
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	if err := a.Release(paths[0]); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Error("released artifact still on disk")
	}
	if err := a.Release(paths[0]); err == nil {
		t.Error("second release of the same artifact should fail")
	}

	a.Keep(paths[2])
	if err := a.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(paths[1]); !os.IsNotExist(err) {
		t.Error("cleanup left a tracked artifact")
	}
	if _, err := os.Stat(paths[2]); err != nil {
		t.Error("kept artifact was deleted")
	}

	created, deleted := a.Stats()
	if created != 3 || deleted != 2 {
		t.Errorf("stats = %d created, %d deleted", created, deleted)
	}
	if len(a.Live()) != 0 {
		t.Errorf("live = %v", a.Live())
	}
}

func TestArtifactCleanupToleratesUnwrittenFiles(t *testing.T) {
	a := NewArtifacts(t.TempDir(), "run", zerolog.Nop())
	if _, err := a.Allocate("clip", ".mp4"); err != nil {
		t.Fatal(err)
	}
	if err := a.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}

func TestArtifactReleaseRejectsForeignPaths(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")
	if err := os.WriteFile(source, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	a := NewArtifacts(dir, "run", zerolog.Nop())
	err := a.Release(source)
	if err == nil || !strings.Contains(err.Error(), "not tracked") {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("caller-supplied file was deleted")
	}
}
