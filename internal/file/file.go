package file

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const appDirPerm os.FileMode = 0o750

// SequenceSuffixes lists the file name endings treated as sequence files.
var SequenceSuffixes = []string{".fastq", ".fastq.gz", ".fq", ".fq.gz"}

// EnsureDir creates the directory and any missing parents. Calling it on an
// existing directory is a no-op.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned output dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// IsSequenceFile reports whether name ends with one of SequenceSuffixes.
func IsSequenceFile(name string) bool {
	for _, suffix := range SequenceSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// ListSequenceFiles walks root recursively and returns the absolute path of
// every regular sequence file, in walk order. Symlinks to regular files are
// included; symlinked directories are not descended.
func ListSequenceFiles(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	var found []string
	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !IsSequenceFile(entry.Name()) || !isRegular(path, entry) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, walkErr)
	}
	return found, nil
}

// isRegular follows a symlink entry to its target. Dangling links are not
// regular.
func isRegular(path string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReplaceAtomic streams the output of write into a temporary file next to
// filename and renames it over filename once write succeeds. A failed write
// leaves filename untouched.
func ReplaceAtomic(filename string, write func(w io.Writer) error) error {
	return replaceAtomic(filename, 0, write)
}

// replaceAtomic is ReplaceAtomic with an explicit mode for the result. A zero
// perm keeps the temp file's 0600.
func replaceAtomic(filename string, perm os.FileMode, write func(w io.Writer) error) error {
	if filename == "" {
		return errors.New("empty filename")
	}
	dir := filepath.Dir(filename)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tempFile.Name()

	buffered := bufio.NewWriter(tempFile)
	if err := write(buffered); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := buffered.Flush(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("flush temp: %w", err)
	}
	// ensure data hits disk
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if perm != 0 {
		if err := os.Chmod(tmpName, perm); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("chmod temp: %w", err)
		}
	}

	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

// WriteJSONAtomic marshals the value and atomically writes it to filename.
func WriteJSONAtomic(filename string, v any) error {
	return ReplaceAtomic(filename, func(w io.Writer) error {
		jsonEncoder := json.NewEncoder(w)
		jsonEncoder.SetIndent("", "  ")
		if err := jsonEncoder.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}

// ReplaceFirstLine rewrites filename so that its first line becomes header.
// All bytes after the original first newline are copied unchanged. A file
// without a newline is treated as header-only. The file keeps its permissions.
func ReplaceFirstLine(filename, header string) error {
	src, err := os.Open(filename) //nolint:gosec // path is supplied by the pipeline
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filename, err)
	}

	return replaceAtomic(filename, info.Mode().Perm(), func(w io.Writer) error {
		reader := bufio.NewReader(src)
		if _, err := reader.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("skip header: %w", err)
		}
		if _, err := io.WriteString(w, header+"\n"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if _, err := io.Copy(w, reader); err != nil {
			return fmt.Errorf("copy body: %w", err)
		}
		return nil
	})
}
