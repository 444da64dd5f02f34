package operations

import (
	"fmt"
	"strings"

	"github.com/kebairia/mongocli/internal/delta"
	"github.com/kebairia/mongocli/internal/fsutil"
)

// renderReport builds the text message posted before the archive upload, so
// recipients get context even if the file transfer fails afterwards.
func renderReport(s *BackupSummary, intervalHours int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**MongoDB backup completed** (%s)\n", s.Scope)
	fmt.Fprintf(&b, "Dumped %d files, %s raw, archived to %s (saved %s, %.2f%%)\n",
		s.FileCount,
		fsutil.FormatBytes(s.RawBackupBytes),
		fsutil.FormatBytes(s.ZipBytes),
		fsutil.FormatBytes(s.CompressionSavedBytes),
		s.CompressionPercent,
	)

	if s.Storage != nil {
		fmt.Fprintf(&b, "Storage total: %s (%s)\n",
			fsutil.FormatBytes(int64(s.Storage.Totals.TotalSize)),
			describeDelta(s.StorageDelta),
		)
		if len(s.TopDatabases) > 0 {
			names := make([]string, 0, len(s.TopDatabases))
			for _, row := range s.TopDatabases {
				names = append(names, fmt.Sprintf("%s (%s)",
					row.DB, fsutil.FormatBytes(int64(row.TotalSize))))
			}
			fmt.Fprintf(&b, "Top databases: %s\n", strings.Join(names, ", "))
		}
		if n := len(s.Storage.Errors); n > 0 {
			fmt.Fprintf(&b, "Stats warnings: %d database(s) could not be examined\n", n)
		}
	}

	fmt.Fprintf(&b, "Archive size: %s\n", describeDelta(s.ZipDelta))
	fmt.Fprintf(&b, "Next scheduled run: in about %dh", intervalHours)
	return b.String()
}

// describeDelta renders a delta for the report. A nil delta means there was
// no previous run to compare against.
func describeDelta(d *delta.Delta) string {
	if d == nil {
		return "no previous run to compare"
	}
	switch d.Direction {
	case delta.DirectionUnchanged:
		return "unchanged since last run"
	default:
		return fmt.Sprintf("%s by %s since last run",
			d.Direction, fsutil.FormatBytes(int64(d.AbsoluteDiff)))
	}
}
