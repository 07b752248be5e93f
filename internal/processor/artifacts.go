package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Artifacts tracks the intermediate files of one pipeline run. Every path
// handed out by Allocate is deleted by Release or Cleanup unless it was
// claimed with Keep.
type Artifacts struct {
	dir    string
	runID  string
	logger zerolog.Logger

	mu      sync.Mutex
	seq     int
	live    []string
	created int
	deleted int
}

func NewArtifacts(dir, runID string, logger zerolog.Logger) *Artifacts {
	return &Artifacts{dir: dir, runID: runID, logger: logger}
}

// Allocate returns a fresh absolute path named <kind>_<runID>_<seq><ext>.
// The file itself is created by whoever writes to it.
func (a *Artifacts) Allocate(kind, ext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir, err := filepath.Abs(a.dir)
	if err != nil {
		return "", errors.Wrap(err, "resolving output directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating output directory %s", dir)
	}

	a.seq++
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", kind, a.runID, a.seq, ext))
	a.live = append(a.live, path)
	a.created++
	return path, nil
}

// Release deletes a tracked artifact once its consumer has completed.
func (a *Artifacts) Release(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.untrack(path) {
		return errors.Errorf("artifact %s is not tracked by run %s", path, a.runID)
	}
	return a.remove(path)
}

// Keep stops tracking path so it survives Cleanup. Used for the final output.
func (a *Artifacts) Keep(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.untrack(path)
}

// Cleanup deletes every artifact still tracked. Failures are logged and the
// first one is returned.
func (a *Artifacts) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for _, path := range a.live {
		if err := a.remove(path); err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("failed to remove artifact")
			if first == nil {
				first = err
			}
		}
	}
	a.live = nil
	return first
}

// Live returns the tracked paths in allocation order.
func (a *Artifacts) Live() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.live...)
}

// Stats returns how many artifacts were allocated and deleted.
func (a *Artifacts) Stats() (created, deleted int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created, a.deleted
}

func (a *Artifacts) untrack(path string) bool {
	for i, p := range a.live {
		if p == path {
			a.live = append(a.live[:i], a.live[i+1:]...)
			return true
		}
	}
	return false
}

// remove deletes path; a file that was never written counts as deleted.
func (a *Artifacts) remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	a.deleted++
	a.logger.Debug().Str("path", path).Msg("artifact removed")
	return nil
}
