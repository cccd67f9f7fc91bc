// Package sample groups sequence files into per-sample work items.
package sample

import (
	"path/filepath"
	"sort"
	"strings"
)

// Token returns the sample identifier of a sequence file: the part of its
// base name before the first underscore.
func Token(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i >= 0 {
		return base[:i]
	}
	return base
}

// LogName returns "<token>.log" for path.
func LogName(path string) string {
	return Token(path) + ".log"
}

// Pair is the paired-end work item of one sample. R1 and R2 must always be
// handed to tools together.
type Pair struct {
	Sample string `json:"sample"`
	R1     string `json:"r1"`
	R2     string `json:"r2"`
}

// Files returns the mates in R1, R2 order.
func (p Pair) Files() []string { return []string{p.R1, p.R2} }

// Group maps each sample token to its files, sorted by name so that R1
// precedes R2.
func Group(files []string) map[string][]string {
	groups := make(map[string][]string)
	for _, f := range files {
		token := Token(f)
		groups[token] = append(groups[token], f)
	}
	for token := range groups {
		sort.Slice(groups[token], func(i, j int) bool {
			return filepath.Base(groups[token][i]) < filepath.Base(groups[token][j])
		})
	}
	return groups
}

// Pairs builds paired work items from a file list, ordered by sample token.
// Samples that do not have exactly two files are returned as orphans instead.
func Pairs(files []string) (pairs []Pair, orphans []string) {
	groups := Group(files)
	tokens := make([]string, 0, len(groups))
	for token := range groups {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	for _, token := range tokens {
		mates := groups[token]
		if len(mates) != 2 {
			orphans = append(orphans, mates...)
			continue
		}
		pairs = append(pairs, Pair{Sample: token, R1: mates[0], R2: mates[1]})
	}
	return pairs, orphans
}
