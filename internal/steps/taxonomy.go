package steps

import (
	"context"

	fileutil "qiime2its/internal/file"
	"qiime2its/internal/runner"
)

// RewriteTaxonomyHeader replaces the header of an exported taxonomy table
// with the three columns biom expects. The file is replaced atomically.
func RewriteTaxonomyHeader(taxonomyTsv string) error {
	return fileutil.ReplaceFirstLine(taxonomyTsv, TaxonomyHeader) //nolint:wrapcheck
}

// BiomAddMetadataCmd attaches the taxonomy column to a biom table.
func (l *Library) BiomAddMetadataCmd(inBiom, taxonomyTsv, outBiom string) runner.Command {
	return l.biom("add-metadata",
		"--sc-separated", "taxonomy",
		"-i", inBiom,
		"--observation-metadata-fp", taxonomyTsv,
		"-o", outBiom,
	)
}

func (l *Library) BiomAddMetadata(ctx context.Context, inBiom, taxonomyTsv, outBiom string) runner.Result {
	return l.runner.Run(ctx, l.BiomAddMetadataCmd(inBiom, taxonomyTsv, outBiom))
}

// BiomConvertCmd writes an annotated biom table as TSV with a taxonomy column.
func (l *Library) BiomConvertCmd(inBiom, taxonomyTsv, outTsv string) runner.Command {
	return l.biom("convert",
		"--to-tsv",
		"--header-key", "taxonomy",
		"-i", inBiom,
		"--observation-metadata-fp", taxonomyTsv,
		"-o", outTsv,
	)
}

func (l *Library) BiomConvert(ctx context.Context, inBiom, taxonomyTsv, outTsv string) runner.Result {
	return l.runner.Run(ctx, l.BiomConvertCmd(inBiom, taxonomyTsv, outTsv))
}
