package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	cases := map[string]string{
		"/data/S01_S1_L001_R1_001.fastq.gz": "S01",
		"plain.fastq":                       "plain.fastq",
		"_leading.fq":                       "",
		"dir_with_underscore/S2_R2.fq":      "S2",
	}
	for in, want := range cases {
		assert.Equal(t, want, Token(in), "Token(%q)", in)
	}
	assert.Equal(t, "S01.log", LogName("/x/S01_R1.fastq"))
}

func TestPairsGroupsAndOrdersMates(t *testing.T) {
	files := []string{
		"/in/B_S2_L001_R2_001.fastq.gz",
		"/in/A_S1_L001_R1_001.fastq.gz",
		"/in/B_S2_L001_R1_001.fastq.gz",
		"/in/A_S1_L001_R2_001.fastq.gz",
		"/in/C_S3_L001_R1_001.fastq.gz",
	}
	pairs, orphans := Pairs(files)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Sample: "A", R1: "/in/A_S1_L001_R1_001.fastq.gz", R2: "/in/A_S1_L001_R2_001.fastq.gz"}, pairs[0])
	assert.Equal(t, Pair{Sample: "B", R1: "/in/B_S2_L001_R1_001.fastq.gz", R2: "/in/B_S2_L001_R2_001.fastq.gz"}, pairs[1])
	assert.Equal(t, []string{"/in/C_S3_L001_R1_001.fastq.gz"}, orphans)
	assert.Equal(t, []string{pairs[0].R1, pairs[0].R2}, pairs[0].Files())
}
