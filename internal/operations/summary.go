package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/mongocli/internal/delta"
	"github.com/kebairia/mongocli/internal/fsutil"
	"github.com/kebairia/mongocli/internal/stats"
)

const (
	// SummaryFilename is the run-scoped summary inside each run directory.
	SummaryFilename = "backup-summary.json"
	// LatestSummaryFilename is the overwritten pointer the next run reads its
	// delta baseline from.
	LatestSummaryFilename = "latest-backup-summary.json"
)

// BackupSummary records everything a single run produced. It is written once
// and never mutated afterwards.
type BackupSummary struct {
	CreatedAt             time.Time     `json:"createdAt"`
	Scope                 string        `json:"scope"`
	DBName                string        `json:"dbName,omitempty"`
	RunOutDir             string        `json:"runOutDir"`
	ZipFilePath           string        `json:"zipFilePath"`
	RawBackupBytes        int64         `json:"rawBackupBytes"`
	ZipBytes              int64         `json:"zipBytes"`
	CompressionSavedBytes int64         `json:"compressionSavedBytes"`
	CompressionPercent    float64       `json:"compressionPercent"`
	Storage               *stats.Report `json:"storage"`
	StorageDelta          *delta.Delta  `json:"storageDelta"`
	ZipDelta              *delta.Delta  `json:"zipDelta"`
	TopDatabases          []stats.Row   `json:"topDatabases"`
	FileCount             int           `json:"fileCount"`
}

// Write persists the summary as pretty-printed JSON at filePath.
func (s *BackupSummary) Write(filePath string) error {
	if err := fsutil.EnsureDirectoryExist(filepath.Dir(filePath)); err != nil {
		return err
	}
	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create summary file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("encode summary JSON: %w", err)
	}
	return nil
}

// LoadSummary reads a previously written summary. A missing file returns
// (nil, nil): the first run has no baseline.
func LoadSummary(filePath string) (*BackupSummary, error) {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open summary file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	var s BackupSummary
	if err := json.NewDecoder(jsonFile).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode summary JSON %q: %w", filePath, err)
	}
	return &s, nil
}

// compressionStats derives the saved-bytes and percentage figures. Saved is
// clamped at zero: pathological content can compress above its raw size.
func compressionStats(rawBytes, zipBytes int64) (saved int64, percent float64) {
	saved = rawBytes - zipBytes
	if saved < 0 {
		saved = 0
	}
	if rawBytes > 0 {
		percent = float64(saved) / float64(rawBytes) * 100
		if percent > 100 {
			percent = 100
		}
	}
	return saved, percent
}
