package fsutil

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// SafeNumber coerces a value to a finite number, defaulting to 0.
// NaN and infinities all map to 0.
func SafeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseBool interprets common truthy strings from environment values.
// Anything unrecognized is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b
	}
	return false
}

// FormatBytes renders a byte count in a human-readable form, e.g. "1.5 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// EnsureDirectoryExist creates dirPath and any missing parents.
func EnsureDirectoryExist(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dirPath, err)
	}
	return nil
}

// ScanDir walks root recursively and returns the summed size and count of all
// regular files beneath it. Siblings are visited sequentially.
func ScanDir(root string) (totalBytes int64, fileCount int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalBytes += info.Size()
		fileCount++
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scan directory %q: %w", root, err)
	}
	return totalBytes, fileCount, nil
}
