package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"qiime2its/internal/config"
	"qiime2its/internal/pipeline"
	"qiime2its/internal/runner"
)

// Manager tracks pipeline runs in memory and executes them in the background
type Manager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	semaphore   chan struct{}
	runner      runner.Runner
	tools       config.Tools
	pipelineCfg config.Pipeline
	workersWG   sync.WaitGroup
	baseCtx     context.Context
	store       RunStore
}

// NewManager creates a manager with the provided configuration
func NewManager(opts Options) *Manager {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = defaultMaxConcurrent
	}
	if opts.Runner == nil {
		opts.Runner = runner.NewExecRunner()
	}
	if opts.Pipeline.CPU < 1 {
		opts.Pipeline.CPU = 1
	}
	return &Manager{
		runs:        make(map[string]*Run),
		semaphore:   make(chan struct{}, opts.MaxConcurrentRuns),
		runner:      opts.Runner,
		tools:       opts.Tools,
		pipelineCfg: opts.Pipeline,
		baseCtx:     context.Background(),
		store:       NewFileStore(opts.DataDir),
	}
}

// IsBusy reports whether every run slot is taken
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Submit registers a run for input and starts it in the background. It
// returns ErrBusy instead of waiting when every slot is taken.
func (m *Manager) Submit(input Input) (*Run, error) {
	absInput, err := filepath.Abs(input.InputDir)
	if err != nil || input.InputDir == "" {
		return nil, fmt.Errorf("%w: %q", ErrInputDir, input.InputDir)
	}
	if info, err := os.Stat(absInput); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputDir, absInput)
	}

	select {
	case m.semaphore <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	paired := m.pipelineCfg.Paired
	if input.Paired != nil {
		paired = *input.Paired
	}
	runID := uuid.NewString()
	newRun := &Run{
		ID:        runID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		InputDir:  absInput,
		OutputDir: m.store.OutputDir(runID),
		Paired:    paired,
		Stages:    []pipeline.StageReport{},
	}

	m.mu.Lock()
	m.runs[runID] = newRun
	snapshot := newRun.clone()
	m.mu.Unlock()

	if err := m.persistRun(snapshot); err != nil {
		log.Warn().Str("run_id", runID).Err(err).Msg("persist run failed")
	}

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		defer func() { <-m.semaphore }()
		m.startProcessing(runID)
	}()
	return snapshot, nil
}

// Get returns a snapshot of a run by ID
func (m *Manager) Get(runID string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found, ok := m.runs[runID]
	if !ok {
		return nil, false
	}
	return found.clone(), true
}

// SetBaseContext sets the context handed to external programs. Cancelling it
// kills running programs; intended for shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight runs finish or the context is done.
// Returns true if all runs finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// persistSnapshot persists a copy of the run taken under the read lock.
func (m *Manager) persistSnapshot(runID string) {
	snapshot, ok := m.Get(runID)
	if !ok {
		return
	}
	if err := m.persistRun(snapshot); err != nil {
		log.Warn().Str("run_id", runID).Str("status", string(snapshot.Status)).Err(err).Msg("persist run failed")
	}
}

// persistRun writes run state to disk atomically under runs/<id>/status.json
func (m *Manager) persistRun(r *Run) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveRun(context.Background(), r) //nolint:wrapcheck
}
