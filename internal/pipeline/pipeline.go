// Package pipeline sequences the workflow steps for one input directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"qiime2its/internal/dispatch"
	fileutil "qiime2its/internal/file"
	"qiime2its/internal/runner"
	"qiime2its/internal/sample"
	"qiime2its/internal/steps"
)

var (
	ErrNoSequenceFiles = errors.New("no sequence files found")
	ErrNoPairs         = errors.New("no complete R1/R2 pairs found")
	ErrStopped         = errors.New("stopped after failed stage")
)

// Options configures one pipeline execution.
type Options struct {
	InputDir   string
	OutputDir  string
	Paired     bool
	Reorient   bool
	CPU        int
	Classifier string
	Metadata   string
	FailFast   bool
	// RunCoreDiversity executes the prepared core-metrics command.
	RunCoreDiversity bool
	// DryRun marks a run whose external programs only get logged. In-process
	// stages skip inputs those programs would have written.
	DryRun bool
	// OnStage, when set, is called after every stage.
	OnStage func(StageReport)
}

func (o Options) validate() error {
	missing := ""
	switch {
	case o.InputDir == "":
		missing = "input dir"
	case o.OutputDir == "":
		missing = "output dir"
	case o.Classifier == "":
		missing = "classifier"
	case o.Metadata == "":
		missing = "metadata"
	}
	if missing != "" {
		return fmt.Errorf("pipeline options: missing %s", missing)
	}
	if o.CPU < 1 {
		return fmt.Errorf("pipeline options: invalid cpu %d", o.CPU)
	}
	return nil
}

// StageReport summarizes the external programs run by one stage.
type StageReport struct {
	Name     string          `json:"name"`
	Commands int             `json:"commands"`
	Failures []runner.Result `json:"failures,omitempty"`
	Note     string          `json:"note,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Failed reports whether any program in the stage failed or the stage
// itself returned an error.
func (s StageReport) Failed() bool {
	return len(s.Failures) > 0 || s.Error != ""
}

// Report is the outcome of a pipeline run.
type Report struct {
	Layout Layout        `json:"-"`
	Stages []StageReport `json:"stages"`
}

// FailedStages returns the names of stages that failed.
func (r Report) FailedStages() []string {
	var names []string
	for _, s := range r.Stages {
		if s.Failed() {
			names = append(names, s.Name)
		}
	}
	return names
}

// Pipeline runs the ITS workflow in its fixed order.
type Pipeline struct {
	lib    *steps.Library
	opts   Options
	layout Layout
	logger zerolog.Logger
}

// New validates opts and returns a Pipeline writing under opts.OutputDir.
func New(lib *steps.Library, opts Options) (*Pipeline, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		lib:    lib,
		opts:   opts,
		layout: NewLayout(opts.OutputDir),
		logger: log.With().Str("output_dir", opts.OutputDir).Logger(),
	}, nil
}

// Layout returns where the pipeline writes its artifacts.
func (p *Pipeline) Layout() Layout { return p.layout }

// reads carries the per-sample files between read-level stages.
type reads struct {
	files []string
	pairs []sample.Pair
}

type stage struct {
	name string
	run  func(ctx context.Context) StageReport
}

// Run executes every stage. The returned error is non-nil only when the run
// could not proceed: directories could not be created, no input was found,
// the context ended, or FailFast stopped the run. Failed programs are
// otherwise recorded in the report and the run continues.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{Layout: p.layout}

	for _, dir := range p.layout.Dirs(p.opts.Reorient) {
		if err := fileutil.EnsureDir(dir); err != nil {
			return report, err
		}
	}

	in, listReport, err := p.list()
	report.Stages = append(report.Stages, listReport)
	p.notify(listReport)
	if err != nil {
		return report, err
	}

	for _, st := range p.stages(&in) {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline interrupted before %s: %w", st.name, err)
		}
		p.logger.Info().Str("stage", st.name).Msg("stage started")
		sr := st.run(ctx)
		sr.Name = st.name
		report.Stages = append(report.Stages, sr)
		p.notify(sr)

		event := p.logger.Info()
		if sr.Failed() {
			event = p.logger.Warn().Int("failures", len(sr.Failures)).Str("error", sr.Error)
		}
		event.Str("stage", st.name).Int("commands", sr.Commands).Msg("stage finished")

		if sr.Failed() && p.opts.FailFast {
			return report, fmt.Errorf("%w: %s", ErrStopped, st.name)
		}
	}
	return report, nil
}

func (p *Pipeline) notify(sr StageReport) {
	if p.opts.OnStage != nil {
		p.opts.OnStage(sr)
	}
}

func (p *Pipeline) list() (reads, StageReport, error) {
	sr := StageReport{Name: "list"}
	files, err := fileutil.ListSequenceFiles(p.opts.InputDir)
	if err != nil {
		sr.Error = err.Error()
		return reads{}, sr, err
	}
	if len(files) == 0 {
		sr.Error = ErrNoSequenceFiles.Error()
		return reads{}, sr, fmt.Errorf("%w in %s", ErrNoSequenceFiles, p.opts.InputDir)
	}
	in := reads{files: files}
	if p.opts.Paired {
		pairs, orphans := sample.Pairs(files)
		for _, o := range orphans {
			p.logger.Warn().Str("file", o).Str("sample", sample.Token(o)).Msg("file has no mate, skipped")
		}
		if len(pairs) == 0 {
			sr.Error = ErrNoPairs.Error()
			return reads{}, sr, fmt.Errorf("%w in %s", ErrNoPairs, p.opts.InputDir)
		}
		in.pairs = pairs
		sr.Note = fmt.Sprintf("%d files, %d pairs", len(files), len(pairs))
	} else {
		sr.Note = fmt.Sprintf("%d files", len(files))
	}
	return in, sr, nil
}

// relocate points the work items at the same base names inside dir.
func (r reads) relocate(dir string) reads {
	moved := reads{}
	for _, f := range r.files {
		moved.files = append(moved.files, filepath.Join(dir, filepath.Base(f)))
	}
	for _, pr := range r.pairs {
		moved.pairs = append(moved.pairs, sample.Pair{
			Sample: pr.Sample,
			R1:     filepath.Join(dir, filepath.Base(pr.R1)),
			R2:     filepath.Join(dir, filepath.Base(pr.R2)),
		})
	}
	return moved
}

func (p *Pipeline) stages(in *reads) []stage {
	var (
		lib = p.lib
		l   = p.layout
		o   = p.opts
	)
	var out []stage
	if o.Reorient {
		out = append(out, stage{"reorient", func(ctx context.Context) StageReport {
			sr := fanout(lib.ReorientParallel(ctx, in.files, l.Reoriented, o.CPU))
			*in = in.relocate(l.Reoriented)
			return sr
		}})
	}
	out = append(out,
		stage{"extract-its", func(ctx context.Context) StageReport {
			var sr StageReport
			if o.Paired {
				sr = fanout(lib.ExtractITSPairedParallel(ctx, in.pairs, l.ITS, l.ITSLogs, o.CPU))
			} else {
				sr = fanout(lib.ExtractITSSingleParallel(ctx, in.files, l.ITS, l.ITSLogs, o.CPU))
			}
			*in = in.relocate(l.ITS)
			return sr
		}},
		stage{"fix-fastq", func(ctx context.Context) StageReport {
			if o.Paired {
				return fanout(lib.FixFastqPairedParallel(ctx, in.pairs, o.CPU))
			}
			return fanout(lib.FixFastqSingleParallel(ctx, in.files, o.CPU))
		}},
		stage{"import", func(ctx context.Context) StageReport {
			if o.Paired {
				return single(lib.ImportPaired(ctx, l.ITS, l.Reads))
			}
			return single(lib.ImportSingle(ctx, l.ITS, l.Reads))
		}},
		stage{"demux-summary", func(ctx context.Context) StageReport {
			return single(lib.DemuxSummary(ctx, l.Reads, l.DemuxSummary))
		}},
		stage{"denoise", func(ctx context.Context) StageReport {
			if o.Paired {
				return single(lib.DenoisePaired(ctx, l.Reads, l.Denoise))
			}
			return single(lib.DenoiseSingle(ctx, l.Reads, l.Denoise))
		}},
		stage{"denoise-stats", func(ctx context.Context) StageReport {
			return single(lib.MetadataTabulate(ctx, l.Denoise.Stats, l.StatsSummary))
		}},
		stage{"table-summary", func(ctx context.Context) StageReport {
			return single(lib.SampleSummarize(ctx, o.Metadata, l.Denoise.Table, l.TableSummary))
		}},
		stage{"seq-summary", func(ctx context.Context) StageReport {
			return single(lib.SeqSummary(ctx, l.Denoise.RepSeqs, l.RepSeqsSummary))
		}},
		stage{"phylogeny", func(ctx context.Context) StageReport {
			return single(lib.Phylogeny(ctx, l.Denoise.RepSeqs, l.Phylogeny))
		}},
		stage{"core-diversity", func(ctx context.Context) StageReport {
			cmd := lib.CoreDiversity(o.CPU, o.Metadata, l.Phylogeny.RootedTree, l.Denoise.Table, l.Qiime)
			if o.RunCoreDiversity {
				return single(lib.Exec(ctx, cmd))
			}
			p.logger.Info().Strs("argv", cmd.Argv()).Msg("core diversity command prepared, not executed")
			return StageReport{Note: "prepared, not executed: " + cmd.String()}
		}},
		stage{"rarefaction", func(ctx context.Context) StageReport {
			return single(lib.Rarefaction(ctx, o.Metadata, l.Phylogeny.RootedTree, l.Denoise.Table, l.Rarefaction))
		}},
		stage{"classify", func(ctx context.Context) StageReport {
			return single(lib.Classify(ctx, o.Classifier, l.Denoise.RepSeqs, l.Taxonomy))
		}},
		stage{"export-table", func(ctx context.Context) StageReport {
			return single(lib.Export(ctx, l.Denoise.Table, l.Export))
		}},
		stage{"export-taxonomy", func(ctx context.Context) StageReport {
			return single(lib.Export(ctx, l.Taxonomy, l.Export))
		}},
		stage{"taxonomy-header", func(context.Context) StageReport {
			if o.DryRun && !fileExists(l.ExportedTaxonomy) {
				return StageReport{Note: "dry run: " + l.ExportedTaxonomy + " not exported, header not rewritten"}
			}
			if err := steps.RewriteTaxonomyHeader(l.ExportedTaxonomy); err != nil {
				return StageReport{Error: err.Error()}
			}
			return StageReport{}
		}},
		stage{"biom-add-metadata", func(ctx context.Context) StageReport {
			return single(lib.BiomAddMetadata(ctx, l.ExportedTable, l.ExportedTaxonomy, l.AnnotatedBiom))
		}},
		stage{"biom-convert", func(ctx context.Context) StageReport {
			return single(lib.BiomConvert(ctx, l.AnnotatedBiom, l.ExportedTaxonomy, l.AnnotatedTsv))
		}},
		stage{"taxa-barplot", func(ctx context.Context) StageReport {
			return single(lib.TaxaBarplot(ctx, l.Denoise.Table, l.Taxonomy, o.Metadata, l.TaxaBarplot))
		}},
	)
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func single(res runner.Result) StageReport {
	sr := StageReport{Commands: 1}
	if !res.OK() {
		sr.Failures = []runner.Result{res}
	}
	return sr
}

func fanout(outcomes []dispatch.Outcome) StageReport {
	sr := StageReport{Commands: len(outcomes)}
	for _, f := range dispatch.Failed(outcomes) {
		sr.Failures = append(sr.Failures, f.Result)
	}
	return sr
}
