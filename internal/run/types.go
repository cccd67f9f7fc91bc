package run

import (
	"time"

	"qiime2its/internal/config"
	"qiime2its/internal/pipeline"
	"qiime2its/internal/runner"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	// StatusPartial marks a run that reached the last stage with at least one
	// failed program along the way.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	return s == StatusReady || s == StatusPartial || s == StatusFailed
}

type Run struct {
	ID         string                 `json:"id"`
	Status     Status                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	InputDir   string                 `json:"input_dir"`
	OutputDir  string                 `json:"output_dir"`
	Paired     bool                   `json:"paired"`
	Stages     []pipeline.StageReport `json:"stages"`
	Error      string                 `json:"error,omitempty"`
	BundlePath string                 `json:"bundle_path,omitempty"`
}

func (r *Run) clone() *Run {
	c := *r
	c.Stages = append([]pipeline.StageReport(nil), r.Stages...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Input is what a caller submits to start a run.
type Input struct {
	InputDir string `json:"input_dir"`
	// Paired overrides the configured read layout when set.
	Paired *bool `json:"paired,omitempty"`
}

type Options struct {
	DataDir           string
	MaxConcurrentRuns int
	Runner            runner.Runner
	Tools             config.Tools
	Pipeline          config.Pipeline
}

const defaultMaxConcurrent = 1
