package pipeline

import (
	"path/filepath"

	"qiime2its/internal/steps"
)

// Layout fixes where every artifact of a run is written.
type Layout struct {
	Root       string
	Reoriented string
	ITS        string
	ITSLogs    string
	Qiime      string
	Export     string

	Reads          string
	DemuxSummary   string
	Denoise        steps.DenoiseOutputs
	StatsSummary   string
	TableSummary   string
	RepSeqsSummary string
	Phylogeny      steps.PhylogenyOutputs
	Rarefaction    string
	Taxonomy       string
	TaxaBarplot    string

	ExportedTable    string
	ExportedTaxonomy string
	AnnotatedBiom    string
	AnnotatedTsv     string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	q := filepath.Join(root, "qiime2")
	exp := filepath.Join(root, "export")
	return Layout{
		Root:       root,
		Reoriented: filepath.Join(root, "reoriented"),
		ITS:        filepath.Join(root, "its"),
		ITSLogs:    filepath.Join(root, "logs", "its"),
		Qiime:      q,
		Export:     exp,

		Reads:        filepath.Join(q, "reads.qza"),
		DemuxSummary: filepath.Join(q, "reads.qzv"),
		Denoise: steps.DenoiseOutputs{
			RepSeqs: filepath.Join(q, "repseqs.qza"),
			Table:   filepath.Join(q, "table.qza"),
			Stats:   filepath.Join(q, "stats.qza"),
		},
		StatsSummary:   filepath.Join(q, "stats.qzv"),
		TableSummary:   filepath.Join(q, "table.qzv"),
		RepSeqsSummary: filepath.Join(q, "repseqs.qzv"),
		Phylogeny: steps.PhylogenyOutputs{
			Alignment:       filepath.Join(q, "aligned-repseqs.qza"),
			MaskedAlignment: filepath.Join(q, "masked-aligned-repseqs.qza"),
			UnrootedTree:    filepath.Join(q, "unrooted-tree.qza"),
			RootedTree:      filepath.Join(q, "rooted-tree.qza"),
		},
		Rarefaction: filepath.Join(q, "alpha-rarefaction.qzv"),
		Taxonomy:    filepath.Join(q, "taxonomy.qza"),
		TaxaBarplot: filepath.Join(q, "taxa-bar-plots.qzv"),

		ExportedTable:    filepath.Join(exp, "feature-table.biom"),
		ExportedTaxonomy: filepath.Join(exp, "taxonomy.tsv"),
		AnnotatedBiom:    filepath.Join(exp, "feature-table-taxo.biom"),
		AnnotatedTsv:     filepath.Join(exp, "feature-table-taxo.tsv"),
	}
}

// Dirs lists the directories created before the first stage.
func (l Layout) Dirs(reorient bool) []string {
	dirs := []string{l.ITS, l.ITSLogs, l.Qiime, l.Export}
	if reorient {
		dirs = append(dirs, l.Reoriented)
	}
	return dirs
}

// Deliverables lists the human-inspectable outputs worth bundling.
func (l Layout) Deliverables() []string {
	return []string{
		l.DemuxSummary,
		l.StatsSummary,
		l.TableSummary,
		l.RepSeqsSummary,
		l.Rarefaction,
		l.TaxaBarplot,
		l.ExportedTaxonomy,
		l.AnnotatedTsv,
	}
}
