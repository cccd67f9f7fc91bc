package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fileutil "qiime2its/internal/file"
)

// RunStore abstracts persistence of run state and the location of run files.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	LoadRuns(ctx context.Context) ([]*Run, error)
	OutputDir(runID string) string
	BundlePath(runID string) string
}

// fileStore keeps runs under dataDir/runs/<id>/.
type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) RunStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) runDir(runID string) string {
	return filepath.Join(s.dataDir, "runs", runID)
}

func (s *fileStore) statusPath(runID string) string {
	return filepath.Join(s.runDir(runID), "status.json")
}

func (s *fileStore) OutputDir(runID string) string {
	return filepath.Join(s.runDir(runID), "output")
}

func (s *fileStore) BundlePath(runID string) string {
	return filepath.Join(s.runDir(runID), "bundle.zip")
}

func (s *fileStore) SaveRun(ctx context.Context, r *Run) error { //nolint:revive // context reserved for future use
	if err := fileutil.EnsureDir(s.runDir(r.ID)); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	return fileutil.WriteJSONAtomic(s.statusPath(r.ID), r) //nolint:wrapcheck
}

func (s *fileStore) LoadRuns(ctx context.Context) ([]*Run, error) { //nolint:revive // context reserved for future use
	root := filepath.Join(s.dataDir, "runs")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	runs := make([]*Run, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var r Run
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		runs = append(runs, &r)
	}
	return runs, nil
}
