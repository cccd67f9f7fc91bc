package run

import (
	"context"
	"fmt"
	"time"
)

// LoadFromDisk loads persisted runs into memory. Runs left queued or in
// progress by a previous process are marked as failed.
func (m *Manager) LoadFromDisk() error {
	if m.store == nil {
		return nil
	}
	loadedRuns, err := m.store.LoadRuns(context.Background())
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}
	for _, r := range loadedRuns {
		if !r.Status.Done() {
			now := time.Now()
			r.Status = StatusFailed
			r.Error = "interrupted by restart"
			r.FinishedAt = &now
			_ = m.persistRun(r)
		}
		m.mu.Lock()
		m.runs[r.ID] = r
		m.mu.Unlock()
	}
	return nil
}
