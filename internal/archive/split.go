package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kebairia/mongocli/internal/fsutil"
)

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be a positive number of bytes")

// SplitFile slices the file at path into sequential parts of at most chunkSize
// bytes each, written under destDir as <base>.part001, <base>.part002, and so
// on. Only one chunk is held in memory at a time. The returned paths are in
// part order; concatenating them in that order reproduces the source exactly.
func SplitFile(path string, chunkSize int64, destDir string) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if err := fsutil.EnsureDirectoryExist(destDir); err != nil {
		return nil, err
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file %q: %w", path, err)
	}
	defer src.Close()

	base := filepath.Base(path)
	buf := make([]byte, chunkSize)
	var parts []string

	for partNum := 1; ; partNum++ {
		n, readErr := io.ReadFull(src, buf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read chunk %d: %w", partNum, readErr)
		}

		partPath := filepath.Join(destDir, fmt.Sprintf("%s.part%03d", base, partNum))
		if err := os.WriteFile(partPath, buf[:n], 0o644); err != nil {
			return nil, fmt.Errorf("write part %q: %w", partPath, err)
		}
		parts = append(parts, partPath)

		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}
	return parts, nil
}
