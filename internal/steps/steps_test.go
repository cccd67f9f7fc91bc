package steps

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qiime2its/internal/config"
	"qiime2its/internal/runner"
	"qiime2its/internal/sample"
)

func newTestLibrary(t *testing.T) (*Library, *runner.Recorder) {
	t.Helper()
	rec := runner.NewRecorder()
	return NewLibrary(rec, config.DefaultTools(), DefaultDivisor), rec
}

func TestReorientArgv(t *testing.T) {
	lib, rec := newTestLibrary(t)
	res := lib.Reorient(context.Background(), "/in/a.fastq", "/out/a.fastq")
	assert.True(t, res.OK())
	require.Len(t, rec.Commands(), 1)
	assert.Equal(t,
		[]string{"reformat.sh", "ow=t", "rcomp=t", "in=/in/a.fastq", "out=/out/a.fastq"},
		rec.Commands()[0].Argv())
}

func TestExtractITSSingleArgv(t *testing.T) {
	lib, _ := newTestLibrary(t)
	cmd := lib.ExtractITSSingleCmd("/in/S01_S1_L001_R1_001.fastq.gz", "/out/its", "/out/log", 2)
	assert.Equal(t, []string{
		"itsxpress",
		"--threads", "2",
		"--single_end",
		"--fastq", "/in/S01_S1_L001_R1_001.fastq.gz",
		"--region", "ITS1",
		"--taxa", "Fungi",
		"--cluster_id", "0.99",
		"--outfile", "/out/its/S01_S1_L001_R1_001.fastq.gz",
		"--log", "/out/log/S01.log",
	}, cmd.Argv())
}

func TestExtractITSPairedArgv(t *testing.T) {
	lib, _ := newTestLibrary(t)
	cmd := lib.ExtractITSPairedCmd("/in/S01_R1.fq", "/in/S01_R2.fq", "/out/its", "/out/log", 4)
	assert.Equal(t, []string{
		"itsxpress",
		"--threads", "4",
		"--fastq", "/in/S01_R1.fq",
		"--fastq2", "/in/S01_R2.fq",
		"--region", "ITS1",
		"--taxa", "Fungi",
		"--cluster_id", "0.99",
		"--outfile", "/out/its/S01_R1.fq",
		"--outfile2", "/out/its/S01_R2.fq",
		"--log", "/out/log/S01.log",
	}, cmd.Argv())
}

func TestFixFastqArgv(t *testing.T) {
	lib, _ := newTestLibrary(t)
	assert.Equal(t,
		[]string{"python", "remove_empty_fastq_entries.py", "-f", "a.fq"},
		lib.FixFastqSingleCmd("a.fq").Argv())
	assert.Equal(t,
		[]string{"python", "remove_empty_fastq_entries.py", "-f", "a_R1.fq", "-f2", "a_R2.fq"},
		lib.FixFastqPairedCmd("a_R1.fq", "a_R2.fq").Argv())
}

func TestPairedParallelIssuesOneCallPerPair(t *testing.T) {
	lib, rec := newTestLibrary(t)
	pairs := []sample.Pair{
		{Sample: "A", R1: "/in/A_R1.fq", R2: "/in/A_R2.fq"},
		{Sample: "B", R1: "/in/B_R1.fq", R2: "/in/B_R2.fq"},
		{Sample: "C", R1: "/in/C_R1.fq", R2: "/in/C_R2.fq"},
	}

	fixOutcomes := lib.FixFastqPairedParallel(context.Background(), pairs, 2)
	itsOutcomes := lib.ExtractITSPairedParallel(context.Background(), pairs, "/out", "/log", 8)
	assert.Len(t, fixOutcomes, 3)
	assert.Len(t, itsOutcomes, 3)

	cmds := rec.Commands()
	require.Len(t, cmds, 6)
	var fixCalls, itsCalls []string
	for _, c := range cmds {
		argv := c.Argv()
		switch c.Name {
		case "python":
			require.Equal(t, "-f", argv[2])
			require.Equal(t, "-f2", argv[4])
			assert.Equal(t, sample.Token(argv[3]), sample.Token(argv[5]), "mates of different samples in one call")
			fixCalls = append(fixCalls, argv[3])
		case "itsxpress":
			assert.Equal(t, "2", argv[2], "8 CPUs split by 4 gives 2 threads per call")
			assert.Equal(t, sample.Token(argv[4]), sample.Token(argv[6]))
			itsCalls = append(itsCalls, argv[4])
		default:
			t.Fatalf("unexpected program %s", c.Name)
		}
	}
	sort.Strings(fixCalls)
	sort.Strings(itsCalls)
	want := []string{"/in/A_R1.fq", "/in/B_R1.fq", "/in/C_R1.fq"}
	assert.Equal(t, want, fixCalls)
	assert.Equal(t, want, itsCalls)
}

func TestSingleParallelCoversEveryFile(t *testing.T) {
	lib, rec := newTestLibrary(t)
	files := []string{"/in/A_R1.fq", "/in/B_R1.fq", "/in/C_R1.fq", "/in/D_R1.fq", "/in/E_R1.fq"}

	lib.ExtractITSSingleParallel(context.Background(), files, "/out", "/log", 8)
	lib.FixFastqSingleParallel(context.Background(), files, 3)
	lib.ReorientParallel(context.Background(), files, "/rc", 8)

	counts := map[string]int{}
	for _, c := range rec.Commands() {
		counts[c.Name]++
	}
	assert.Equal(t, map[string]int{"itsxpress": 5, "python": 5, "reformat.sh": 5}, counts)
}

func TestImportAndDenoiseArgv(t *testing.T) {
	lib, _ := newTestLibrary(t)
	assert.Equal(t, []string{
		"qiime", "tools", "import",
		"--type", "SampleData[SequencesWithQuality]",
		"--input-format", "CasavaOneEightSingleLanePerSampleDirFmt",
		"--input-path", "/its",
		"--output-path", "/q/reads.qza",
	}, lib.ImportCmd("/its", "/q/reads.qza", false).Argv())
	assert.Equal(t, "SampleData[PairedEndSequencesWithQuality]", lib.ImportCmd("/its", "/q/reads.qza", true).Args[3])

	out := DenoiseOutputs{RepSeqs: "r.qza", Table: "t.qza", Stats: "s.qza"}
	assert.Equal(t, []string{
		"qiime", "dada2", "denoise-paired",
		"--p-n-threads", "0",
		"--p-trim-left-f", "0",
		"--p-trim-left-r", "0",
		"--p-trunc-len-f", "0",
		"--p-trunc-len-r", "0",
		"--i-demultiplexed-seqs", "reads.qza",
		"--o-representative-sequences", "r.qza",
		"--o-table", "t.qza",
		"--o-denoising-stats", "s.qza",
	}, lib.DenoisePairedCmd("reads.qza", out).Argv())
	single := lib.DenoiseSingleCmd("reads.qza", out).Argv()
	assert.Equal(t, []string{"qiime", "dada2", "denoise-single", "--p-n-threads", "0", "--p-trim-left", "0", "--p-trunc-len", "0"}, single[:9])
}

func TestFixedDepthsAndJobs(t *testing.T) {
	lib, _ := newTestLibrary(t)
	assert.Equal(t, []string{
		"qiime", "diversity", "alpha-rarefaction",
		"--p-max-depth", "4000",
		"--i-phylogeny", "tree.qza",
		"--i-table", "table.qza",
		"--m-metadata-file", "meta.tsv",
		"--o-visualization", "rare.qzv",
	}, lib.RarefactionCmd("meta.tsv", "tree.qza", "table.qza", "rare.qzv").Argv())
	assert.Equal(t, []string{
		"qiime", "feature-classifier", "classify-sklearn",
		"--p-n-jobs", "-1",
		"--i-classifier", "unite.qza",
		"--i-reads", "rep.qza",
		"--o-classification", "tax.qza",
	}, lib.ClassifyCmd("unite.qza", "rep.qza", "tax.qza").Argv())
	assert.Equal(t, []string{
		"qiime", "phylogeny", "align-to-tree-mafft-fasttree",
		"--p-n-threads", "auto",
		"--i-sequences", "rep.qza",
		"--o-alignment", "a.qza",
		"--o-masked-alignment", "m.qza",
		"--o-tree", "u.qza",
		"--o-rooted-tree", "r.qza",
	}, lib.PhylogenyCmd("rep.qza", PhylogenyOutputs{Alignment: "a.qza", MaskedAlignment: "m.qza", UnrootedTree: "u.qza", RootedTree: "r.qza"}).Argv())
	assert.Equal(t, []string{"qiime", "demux", "summarize", "--p-n", "1000", "--i-data", "reads.qza", "--o-visualization", "demux.qzv"},
		lib.DemuxSummaryCmd("reads.qza", "demux.qzv").Argv())
}

func TestCoreDiversityBuildsButDoesNotRun(t *testing.T) {
	lib, rec := newTestLibrary(t)
	outDir := t.TempDir()
	cmd := lib.CoreDiversity(4, "meta.tsv", "tree.qza", "table.qza", outDir)

	assert.Empty(t, rec.Commands(), "core diversity must not invoke anything")
	_, err := os.Stat(filepath.Join(outDir, "core-metrics-results"))
	assert.True(t, os.IsNotExist(err), "no artifact is produced")
	assert.Equal(t, []string{
		"qiime", "diversity", "core-metrics-phylogenetic",
		"--p-n-jobs-or-threads", "4",
		"--p-sampling-depth", "1000",
		"--i-phylogeny", "tree.qza",
		"--i-table", "table.qza",
		"--m-metadata-file", "meta.tsv",
		"--output-dir", filepath.Join(outDir, "core-metrics-results"),
	}, cmd.Argv())

	lib.Exec(context.Background(), cmd)
	assert.Len(t, rec.Commands(), 1)
}

func TestBiomArgv(t *testing.T) {
	lib, _ := newTestLibrary(t)
	assert.Equal(t, []string{
		"biom", "add-metadata",
		"--sc-separated", "taxonomy",
		"-i", "in.biom",
		"--observation-metadata-fp", "taxonomy.tsv",
		"-o", "out.biom",
	}, lib.BiomAddMetadataCmd("in.biom", "taxonomy.tsv", "out.biom").Argv())
	assert.Equal(t, []string{
		"biom", "convert",
		"--to-tsv",
		"--header-key", "taxonomy",
		"-i", "out.biom",
		"--observation-metadata-fp", "taxonomy.tsv",
		"-o", "out.tsv",
	}, lib.BiomConvertCmd("out.biom", "taxonomy.tsv", "out.tsv").Argv())
}

func TestRewriteTaxonomyHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.tsv")
	data := "a1\tk__Fungi;p__Basidiomycota\t0.9991\na2\tUnassigned\t0.71\n"
	require.NoError(t, os.WriteFile(path, []byte("Feature ID\tTaxon\tConfidence\n"+data), 0o600))

	require.NoError(t, RewriteTaxonomyHeader(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#OTUID\ttaxonomy\tconfidence\n"+data, string(got))
}

func TestCustomToolsAndDivisor(t *testing.T) {
	rec := runner.NewRecorder()
	tools := config.DefaultTools()
	tools.Qiime = "conda run -n qiime2 qiime"
	lib := NewLibrary(rec, tools, 0)
	assert.Equal(t, DefaultDivisor, lib.divisor)

	cmd := lib.SeqSummaryCmd("rep.qza", "rep.qzv")
	assert.Equal(t, "conda", cmd.Name)
	assert.Equal(t, []string{"run", "-n", "qiime2", "qiime", "feature-table", "tabulate-seqs", "--i-data", "rep.qza", "--o-visualization", "rep.qzv"}, cmd.Args)
}

func TestExtractITSPassesThreadsOnce(t *testing.T) {
	lib, _ := newTestLibrary(t)
	for _, cmd := range []runner.Command{
		lib.ExtractITSSingleCmd("/in/S01_R1.fq", "/out/its", "/out/log", 3),
		lib.ExtractITSPairedCmd("/in/S01_R1.fq", "/in/S01_R2.fq", "/out/its", "/out/log", 3),
	} {
		threads := 0
		for _, a := range cmd.Argv() {
			if a == "--threads" {
				threads++
			}
		}
		assert.Equal(t, 1, threads, cmd.String())
	}
}
