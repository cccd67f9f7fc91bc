package steps

import (
	"context"
	"path/filepath"
	"strconv"

	"qiime2its/internal/runner"
)

// ImportCmd wraps a directory of demultiplexed Casava-named fastq files into
// a reads archive.
func (l *Library) ImportCmd(fastqDir, readsQza string, paired bool) runner.Command {
	readType := SingleEndReadType
	if paired {
		readType = PairedReadType
	}
	return l.qiime("tools", "import",
		"--type", readType,
		"--input-format", CasavaFormat,
		"--input-path", fastqDir,
		"--output-path", readsQza,
	)
}

func (l *Library) ImportSingle(ctx context.Context, fastqDir, readsQza string) runner.Result {
	return l.runner.Run(ctx, l.ImportCmd(fastqDir, readsQza, false))
}

func (l *Library) ImportPaired(ctx context.Context, fastqDir, readsQza string) runner.Result {
	return l.runner.Run(ctx, l.ImportCmd(fastqDir, readsQza, true))
}

// DemuxSummaryCmd summarizes a reads archive from a subsample of reads.
func (l *Library) DemuxSummaryCmd(readsQza, outQzv string) runner.Command {
	return l.qiime("demux", "summarize",
		"--p-n", strconv.Itoa(DemuxSubsample),
		"--i-data", readsQza,
		"--o-visualization", outQzv,
	)
}

func (l *Library) DemuxSummary(ctx context.Context, readsQza, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.DemuxSummaryCmd(readsQza, outQzv))
}

// DenoiseOutputs names the three archives written by DADA2.
type DenoiseOutputs struct {
	RepSeqs string
	Table   string
	Stats   string
}

// DenoiseSingleCmd denoises full-length single-end reads.
func (l *Library) DenoiseSingleCmd(readsQza string, out DenoiseOutputs) runner.Command {
	return l.qiime("dada2", "denoise-single",
		"--p-n-threads", "0",
		"--p-trim-left", "0",
		"--p-trunc-len", "0",
		"--i-demultiplexed-seqs", readsQza,
		"--o-representative-sequences", out.RepSeqs,
		"--o-table", out.Table,
		"--o-denoising-stats", out.Stats,
	)
}

func (l *Library) DenoiseSingle(ctx context.Context, readsQza string, out DenoiseOutputs) runner.Result {
	return l.runner.Run(ctx, l.DenoiseSingleCmd(readsQza, out))
}

// DenoisePairedCmd denoises full-length paired-end reads.
func (l *Library) DenoisePairedCmd(readsQza string, out DenoiseOutputs) runner.Command {
	return l.qiime("dada2", "denoise-paired",
		"--p-n-threads", "0",
		"--p-trim-left-f", "0",
		"--p-trim-left-r", "0",
		"--p-trunc-len-f", "0",
		"--p-trunc-len-r", "0",
		"--i-demultiplexed-seqs", readsQza,
		"--o-representative-sequences", out.RepSeqs,
		"--o-table", out.Table,
		"--o-denoising-stats", out.Stats,
	)
}

func (l *Library) DenoisePaired(ctx context.Context, readsQza string, out DenoiseOutputs) runner.Result {
	return l.runner.Run(ctx, l.DenoisePairedCmd(readsQza, out))
}

func (l *Library) MetadataTabulateCmd(inQza, outQzv string) runner.Command {
	return l.qiime("metadata", "tabulate",
		"--m-input-file", inQza,
		"--o-visualization", outQzv,
	)
}

func (l *Library) MetadataTabulate(ctx context.Context, inQza, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.MetadataTabulateCmd(inQza, outQzv))
}

// ExportCmd extracts the payload of an archive into outDir.
func (l *Library) ExportCmd(inQza, outDir string) runner.Command {
	return l.qiime("tools", "export",
		"--input-path", inQza,
		"--output-path", outDir,
	)
}

func (l *Library) Export(ctx context.Context, inQza, outDir string) runner.Result {
	return l.runner.Run(ctx, l.ExportCmd(inQza, outDir))
}

func (l *Library) SampleSummarizeCmd(metadata, tableQza, outQzv string) runner.Command {
	return l.qiime("feature-table", "summarize",
		"--m-sample-metadata-file", metadata,
		"--i-table", tableQza,
		"--o-visualization", outQzv,
	)
}

func (l *Library) SampleSummarize(ctx context.Context, metadata, tableQza, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.SampleSummarizeCmd(metadata, tableQza, outQzv))
}

func (l *Library) SeqSummaryCmd(repSeqsQza, outQzv string) runner.Command {
	return l.qiime("feature-table", "tabulate-seqs",
		"--i-data", repSeqsQza,
		"--o-visualization", outQzv,
	)
}

func (l *Library) SeqSummary(ctx context.Context, repSeqsQza, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.SeqSummaryCmd(repSeqsQza, outQzv))
}

// PhylogenyOutputs names the archives written by align-to-tree-mafft-fasttree.
type PhylogenyOutputs struct {
	Alignment       string
	MaskedAlignment string
	UnrootedTree    string
	RootedTree      string
}

// PhylogenyCmd aligns, masks and builds both trees in a single call.
func (l *Library) PhylogenyCmd(repSeqsQza string, out PhylogenyOutputs) runner.Command {
	return l.qiime("phylogeny", "align-to-tree-mafft-fasttree",
		"--p-n-threads", "auto",
		"--i-sequences", repSeqsQza,
		"--o-alignment", out.Alignment,
		"--o-masked-alignment", out.MaskedAlignment,
		"--o-tree", out.UnrootedTree,
		"--o-rooted-tree", out.RootedTree,
	)
}

func (l *Library) Phylogeny(ctx context.Context, repSeqsQza string, out PhylogenyOutputs) runner.Result {
	return l.runner.Run(ctx, l.PhylogenyCmd(repSeqsQza, out))
}

// CoreDiversity builds the core-metrics-phylogenetic command writing to
// outDir/core-metrics-results and returns it without running it. Callers that
// want the metrics pass the command to Exec.
func (l *Library) CoreDiversity(cpu int, metadata, rootedTreeQza, tableQza, outDir string) runner.Command {
	return l.qiime("diversity", "core-metrics-phylogenetic",
		"--p-n-jobs-or-threads", strconv.Itoa(cpu),
		"--p-sampling-depth", strconv.Itoa(SamplingDepth),
		"--i-phylogeny", rootedTreeQza,
		"--i-table", tableQza,
		"--m-metadata-file", metadata,
		"--output-dir", filepath.Join(outDir, "core-metrics-results"),
	)
}

func (l *Library) RarefactionCmd(metadata, rootedTreeQza, tableQza, outQzv string) runner.Command {
	return l.qiime("diversity", "alpha-rarefaction",
		"--p-max-depth", strconv.Itoa(RarefactionDepth),
		"--i-phylogeny", rootedTreeQza,
		"--i-table", tableQza,
		"--m-metadata-file", metadata,
		"--o-visualization", outQzv,
	)
}

func (l *Library) Rarefaction(ctx context.Context, metadata, rootedTreeQza, tableQza, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.RarefactionCmd(metadata, rootedTreeQza, tableQza, outQzv))
}

// ClassifyCmd assigns taxonomy with a pre-trained classifier on all cores.
func (l *Library) ClassifyCmd(classifierQza, repSeqsQza, taxonomyQza string) runner.Command {
	return l.qiime("feature-classifier", "classify-sklearn",
		"--p-n-jobs", "-1",
		"--i-classifier", classifierQza,
		"--i-reads", repSeqsQza,
		"--o-classification", taxonomyQza,
	)
}

func (l *Library) Classify(ctx context.Context, classifierQza, repSeqsQza, taxonomyQza string) runner.Result {
	return l.runner.Run(ctx, l.ClassifyCmd(classifierQza, repSeqsQza, taxonomyQza))
}

func (l *Library) TaxaBarplotCmd(tableQza, taxonomyQza, metadata, outQzv string) runner.Command {
	return l.qiime("taxa", "barplot",
		"--i-table", tableQza,
		"--i-taxonomy", taxonomyQza,
		"--m-metadata-file", metadata,
		"--o-visualization", outQzv,
	)
}

func (l *Library) TaxaBarplot(ctx context.Context, tableQza, taxonomyQza, metadata, outQzv string) runner.Result {
	return l.runner.Run(ctx, l.TaxaBarplotCmd(tableQza, taxonomyQza, metadata, outQzv))
}
