// Package steps builds the argument vectors of every external tool used by
// the ITS workflow and runs them through a runner.Runner.
//
// Each operation comes in two parts: a ...Cmd method that only builds the
// runner.Command, and a method of the same name without the suffix that runs
// it and returns the runner.Result. Flags that the workflow fixes (region,
// taxa, depths, trimming) are constants here, not parameters.
package steps

import (
	"context"

	"qiime2its/internal/config"
	"qiime2its/internal/runner"
)

const (
	ITSRegion        = "ITS1"
	ITSTaxa          = "Fungi"
	ITSClusterID     = "0.99"
	DemuxSubsample   = 1000
	SamplingDepth    = 1000
	RarefactionDepth = 4000
	DefaultDivisor   = 4

	CasavaFormat      = "CasavaOneEightSingleLanePerSampleDirFmt"
	SingleEndReadType = "SampleData[SequencesWithQuality]"
	PairedReadType    = "SampleData[PairedEndSequencesWithQuality]"

	TaxonomyHeader = "#OTUID\ttaxonomy\tconfidence"
)

// Library runs workflow operations with a fixed set of tool programs.
type Library struct {
	runner  runner.Runner
	tools   config.Tools
	divisor int
}

// NewLibrary returns a Library that starts programs through r. divisor is
// the CPU divisor used by the ITS extraction and reorientation fan-outs;
// values below 1 select DefaultDivisor.
func NewLibrary(r runner.Runner, tools config.Tools, divisor int) *Library {
	if divisor < 1 {
		divisor = DefaultDivisor
	}
	return &Library{runner: r, tools: tools, divisor: divisor}
}

// Exec runs an already built command.
func (l *Library) Exec(ctx context.Context, cmd runner.Command) runner.Result {
	return l.runner.Run(ctx, cmd)
}

func (l *Library) qiime(args ...string) runner.Command {
	return runner.NewCommand(l.tools.Qiime, args...)
}

func (l *Library) biom(args ...string) runner.Command {
	return runner.NewCommand(l.tools.Biom, args...)
}
