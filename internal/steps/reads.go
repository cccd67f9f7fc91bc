package steps

import (
	"context"
	"path/filepath"
	"strconv"

	"qiime2its/internal/dispatch"
	"qiime2its/internal/runner"
	"qiime2its/internal/sample"
)

// ReorientCmd reverse-complements in into out.
func (l *Library) ReorientCmd(in, out string) runner.Command {
	return runner.NewCommand(l.tools.Reorient,
		"ow=t",
		"rcomp=t",
		"in="+in,
		"out="+out,
	)
}

func (l *Library) Reorient(ctx context.Context, in, out string) runner.Result {
	return l.runner.Run(ctx, l.ReorientCmd(in, out))
}

// ReorientParallel writes the reverse complement of every file to outDir
// under the same base name.
func (l *Library) ReorientParallel(ctx context.Context, files []string, outDir string, cpu int) []dispatch.Outcome {
	pool, _ := dispatch.Partition(cpu, l.divisor)
	return dispatch.Map(ctx, files, pool, func(ctx context.Context, f string) runner.Result {
		return l.Reorient(ctx, f, filepath.Join(outDir, filepath.Base(f)))
	})
}

// ExtractITSSingleCmd extracts the fungal ITS1 region of one single-end file
// into outDir, logging to logDir/<sample>.log. --threads is passed once;
// repeating it with the same value changes nothing.
func (l *Library) ExtractITSSingleCmd(fastq, outDir, logDir string, cpu int) runner.Command {
	return runner.NewCommand(l.tools.ITSxpress,
		"--threads", strconv.Itoa(cpu),
		"--single_end",
		"--fastq", fastq,
		"--region", ITSRegion,
		"--taxa", ITSTaxa,
		"--cluster_id", ITSClusterID,
		"--outfile", filepath.Join(outDir, filepath.Base(fastq)),
		"--log", filepath.Join(logDir, sample.LogName(fastq)),
	)
}

func (l *Library) ExtractITSSingle(ctx context.Context, fastq, outDir, logDir string, cpu int) runner.Result {
	return l.runner.Run(ctx, l.ExtractITSSingleCmd(fastq, outDir, logDir, cpu))
}

// ExtractITSPairedCmd extracts both mates of a sample in one call so that
// the outputs stay synchronized. --threads is passed once, as for single-end.
func (l *Library) ExtractITSPairedCmd(r1, r2, outDir, logDir string, cpu int) runner.Command {
	return runner.NewCommand(l.tools.ITSxpress,
		"--threads", strconv.Itoa(cpu),
		"--fastq", r1,
		"--fastq2", r2,
		"--region", ITSRegion,
		"--taxa", ITSTaxa,
		"--cluster_id", ITSClusterID,
		"--outfile", filepath.Join(outDir, filepath.Base(r1)),
		"--outfile2", filepath.Join(outDir, filepath.Base(r2)),
		"--log", filepath.Join(logDir, sample.LogName(r1)),
	)
}

func (l *Library) ExtractITSPaired(ctx context.Context, r1, r2, outDir, logDir string, cpu int) runner.Result {
	return l.runner.Run(ctx, l.ExtractITSPairedCmd(r1, r2, outDir, logDir, cpu))
}

// ExtractITSSingleParallel runs ExtractITSSingle over files, splitting cpu
// with the library divisor.
func (l *Library) ExtractITSSingleParallel(ctx context.Context, files []string, outDir, logDir string, cpu int) []dispatch.Outcome {
	pool, share := dispatch.Partition(cpu, l.divisor)
	return dispatch.Map(ctx, files, pool, func(ctx context.Context, f string) runner.Result {
		return l.ExtractITSSingle(ctx, f, outDir, logDir, share)
	})
}

// ExtractITSPairedParallel runs ExtractITSPaired once per pair.
func (l *Library) ExtractITSPairedParallel(ctx context.Context, pairs []sample.Pair, outDir, logDir string, cpu int) []dispatch.Outcome {
	pool, share := dispatch.Partition(cpu, l.divisor)
	return dispatch.Map(ctx, pairs, pool, func(ctx context.Context, p sample.Pair) runner.Result {
		return l.ExtractITSPaired(ctx, p.R1, p.R2, outDir, logDir, share)
	})
}

// FixFastqSingleCmd removes empty records from fastq, overwriting it.
func (l *Library) FixFastqSingleCmd(fastq string) runner.Command {
	return runner.NewCommand(l.tools.FixFastq, "-f", fastq)
}

func (l *Library) FixFastqSingle(ctx context.Context, fastq string) runner.Result {
	return l.runner.Run(ctx, l.FixFastqSingleCmd(fastq))
}

// FixFastqPairedCmd fixes both mates jointly: a record dropped from one
// mate is dropped from the other.
func (l *Library) FixFastqPairedCmd(r1, r2 string) runner.Command {
	return runner.NewCommand(l.tools.FixFastq, "-f", r1, "-f2", r2)
}

func (l *Library) FixFastqPaired(ctx context.Context, r1, r2 string) runner.Result {
	return l.runner.Run(ctx, l.FixFastqPairedCmd(r1, r2))
}

// FixFastqSingleParallel fixes one file per worker with cpu workers.
func (l *Library) FixFastqSingleParallel(ctx context.Context, files []string, cpu int) []dispatch.Outcome {
	pool, _ := dispatch.Partition(cpu, 1)
	return dispatch.Map(ctx, files, pool, l.FixFastqSingle)
}

// FixFastqPairedParallel fixes one pair per worker with cpu workers.
func (l *Library) FixFastqPairedParallel(ctx context.Context, pairs []sample.Pair, cpu int) []dispatch.Outcome {
	pool, _ := dispatch.Partition(cpu, 1)
	return dispatch.Map(ctx, pairs, pool, func(ctx context.Context, p sample.Pair) runner.Result {
		return l.FixFastqPaired(ctx, p.R1, p.R2)
	})
}
