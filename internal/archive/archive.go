package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const archiveDirPerm os.FileMode = 0o750

// Result describes the outcome of adding a single artifact to the bundle.
type Result struct {
	Path  string `json:"path"`
	Entry string `json:"entry,omitempty"`
	Err   string `json:"error,omitempty"`
}

// BuildBundle writes every path into a zip at destZipPath, naming entries
// relative to root. It always returns one Result per path; artifacts that are
// missing or unreadable get Result.Err set and are left out of the zip. An
// error is returned only when the zip itself cannot be written.
func BuildBundle(ctx context.Context, destZipPath, root string, paths []string) ([]Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("no artifacts provided")
	}

	zipFile, zipWriter, err := prepareZip(destZipPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zipWriter.Close() }()
	defer func() { _ = zipFile.Close() }()

	results := make([]Result, len(paths))
	for i, artifact := range paths {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Path: artifact, Err: err.Error()}
			continue
		}
		results[i] = addArtifact(zipWriter, root, artifact)
	}

	if err := zipWriter.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip writer failed")
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip file failed")
		return results, fmt.Errorf("close zip file: %w", err)
	}
	return results, nil
}

// prepareZip creates destination file and a zip writer for it.
func prepareZip(destZipPath string) (io.WriteCloser, *zip.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(destZipPath), archiveDirPerm); err != nil { //nolint:gosec // directory created by application under controlled path
		return nil, nil, fmt.Errorf("ensure dir: %w", err)
	}
	zipFile, err := os.Create(destZipPath) //nolint:gosec // path is constructed by the application
	if err != nil {
		return nil, nil, fmt.Errorf("create file: %w", err)
	}
	return zipFile, zip.NewWriter(zipFile), nil
}

func addArtifact(zipWriter *zip.Writer, root, artifact string) Result {
	result := Result{Path: artifact, Entry: entryName(root, artifact)}

	src, err := os.Open(artifact) //nolint:gosec // artifact paths come from the run layout
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("artifact", artifact).Err(err).Msg("artifact not bundled")
		return result
	}
	defer func() { _ = src.Close() }()

	zipEntryWriter, err := zipWriter.Create(result.Entry)
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("artifact", artifact).Err(err).Msg("zip entry create failed")
		return result
	}
	if _, err := io.Copy(zipEntryWriter, src); err != nil {
		result.Err = err.Error()
		log.Warn().Str("artifact", artifact).Err(err).Msg("copy into zip failed")
		return result
	}
	return result
}

// entryName returns artifact relative to root with forward slashes, falling
// back to the base name for paths outside root.
func entryName(root, artifact string) string {
	rel, err := filepath.Rel(root, artifact)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(artifact)
	}
	return filepath.ToSlash(rel)
}
