package run

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"qiime2its/internal/archive"
	"qiime2its/internal/pipeline"
	"qiime2its/internal/steps"
)

// startProcessing runs the pipeline for runID. The caller holds a slot.
func (m *Manager) startProcessing(runID string) {
	m.mu.Lock()
	current, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		return
	}
	current.Status = StatusInProgress
	processingContext := m.baseCtx
	cfg := m.pipelineCfg
	opts := pipeline.Options{
		InputDir:         current.InputDir,
		OutputDir:        current.OutputDir,
		Paired:           current.Paired,
		Reorient:         cfg.Reorient,
		CPU:              cfg.CPU,
		Classifier:       cfg.Classifier,
		Metadata:         cfg.Metadata,
		FailFast:         cfg.FailFast,
		RunCoreDiversity: cfg.RunCoreDiversity,
		DryRun:           cfg.DryRun,
	}
	m.mu.Unlock()
	m.persistSnapshot(runID)

	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Str("input_dir", opts.InputDir).Bool("paired", opts.Paired).Int("cpu", opts.CPU).Msg("run started")

	opts.OnStage = func(sr pipeline.StageReport) {
		m.mu.Lock()
		current.Stages = append(current.Stages, sr)
		m.mu.Unlock()
		m.persistSnapshot(runID)
	}

	lib := steps.NewLibrary(m.runner, m.tools, cfg.ITSDivisor)
	p, err := pipeline.New(lib, opts)
	if err != nil {
		m.failRun(runID, err.Error())
		return
	}
	if processingContext == nil {
		processingContext = context.Background()
	}
	report, err := p.Run(processingContext)
	if err != nil {
		logger.Error().Err(err).Msg("run stopped")
		m.failRun(runID, err.Error())
		return
	}

	layout := p.Layout()
	bundlePath := m.store.BundlePath(runID)
	bundleResults, err := archive.BuildBundle(processingContext, bundlePath, layout.Root, layout.Deliverables())
	if err != nil {
		logger.Warn().Err(err).Msg("bundle failed")
	}
	bundled := 0
	for _, res := range bundleResults {
		if res.Err == "" {
			bundled++
		}
	}

	failedStages := report.FailedStages()
	now := time.Now()
	m.mu.Lock()
	current.FinishedAt = &now
	if err == nil && bundled > 0 {
		current.BundlePath = bundlePath
	}
	if len(failedStages) == 0 {
		current.Status = StatusReady
	} else {
		current.Status = StatusPartial
	}
	m.mu.Unlock()
	m.persistSnapshot(runID)

	logger.Info().Strs("failed_stages", failedStages).Int("bundled", bundled).Msg("run finished")
}

func (m *Manager) failRun(runID, msg string) {
	now := time.Now()
	m.mu.Lock()
	current, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		return
	}
	current.Status = StatusFailed
	current.Error = msg
	current.FinishedAt = &now
	m.mu.Unlock()
	m.persistSnapshot(runID)
}
