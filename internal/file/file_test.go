package file

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err=%v", dir, err)
	}
	if err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestListSequenceFilesFiltersRecursively(t *testing.T) {
	root := t.TempDir()
	want := []string{
		filepath.Join(root, "S1_R1.fastq"),
		filepath.Join(root, "S1_R2.fastq.gz"),
		filepath.Join(root, "nested", "S2_R1.fq"),
		filepath.Join(root, "nested", "deeper", "S2_R2.fq.gz"),
	}
	for _, p := range want {
		writeFile(t, p, "@r\nACGT\n+\nIIII\n")
	}
	for _, p := range []string{
		filepath.Join(root, "notes.txt"),
		filepath.Join(root, "S3.fastq.bak"),
		filepath.Join(root, "nested", "S4.fa"),
		filepath.Join(root, "nested", "S5.gz"),
	} {
		writeFile(t, p, "x")
	}
	if err := os.Mkdir(filepath.Join(root, "dir.fastq"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// Reads linked in from elsewhere are listed; dangling links are not.
	raw := filepath.Join(t.TempDir(), "S6_R1.fastq.gz")
	writeFile(t, raw, "@r\nACGT\n+\nIIII\n")
	linked := filepath.Join(root, "S6_R1.fastq.gz")
	if err := os.Symlink(raw, linked); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	want = append(want, linked)
	if err := os.Symlink(filepath.Join(root, "gone.fastq"), filepath.Join(root, "S7_R1.fastq")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	got, err := ListSequenceFiles(root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %d files, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("file %d: want %s got %s", i, want[i], got[i])
		}
		if !filepath.IsAbs(got[i]) {
			t.Fatalf("expected absolute path, got %s", got[i])
		}
	}
}

func TestListSequenceFilesMissingRoot(t *testing.T) {
	if _, err := ListSequenceFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestReplaceFirstLineKeepsBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.tsv")
	body := "f1\tk__Fungi;p__Ascomycota\t0.98\nf2\tk__Fungi\t0.7\r\nf3\t\t\n"
	writeFile(t, path, "Feature ID\tTaxon\tConfidence\n"+body)

	if err := ReplaceFirstLine(path, "#OTUID\ttaxonomy\tconfidence"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := "#OTUID\ttaxonomy\tconfidence\n" + body; string(got) != want {
		t.Fatalf("unexpected content:\n%q\nwant\n%q", got, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be gone, dir has %d entries", len(entries))
	}
}

func TestReplaceFirstLineKeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.tsv")
	writeFile(t, path, "Feature ID\tTaxon\nf1\tk__Fungi\n")
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if err := ReplaceFirstLine(path, "#OTUID\ttaxonomy"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o644 {
		t.Fatalf("expected mode 0644, got %o", got)
	}
}

func TestReplaceFirstLineHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tsv")
	writeFile(t, path, "old header")
	if err := ReplaceFirstLine(path, "new"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestReplaceFirstLineMissingFile(t *testing.T) {
	if err := ReplaceFirstLine(filepath.Join(t.TempDir(), "nope.tsv"), "h"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "x", "status.json")
	if err := WriteJSONAtomic(path, map[string]string{"status": "ready"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) == 0 || got[0] != '{' {
		t.Fatalf("unexpected json %q", got)
	}
}
