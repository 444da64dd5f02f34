// Package operations sequences one backup run: dump, scan, archive, stats,
// summary persistence, report, upload. Stages are strictly sequential; backup
// correctness here depends on ordering, not throughput.
package operations

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/kebairia/mongocli/internal/archive"
	"github.com/kebairia/mongocli/internal/config"
	"github.com/kebairia/mongocli/internal/delta"
	"github.com/kebairia/mongocli/internal/dump"
	"github.com/kebairia/mongocli/internal/fsutil"
	"github.com/kebairia/mongocli/internal/logger"
	"github.com/kebairia/mongocli/internal/stats"
)

const (
	runDirTimestamp = "2006-01-02_15-04-05"
	// interPartDelay spaces out chunk uploads so a multi-part transfer does
	// not burst the rate limiter before any 429 is observed.
	interPartDelay   = 350 * time.Millisecond
	topDatabaseCount = 3
)

// Dumper is the external dump collaborator.
type Dumper interface {
	DumpOne(ctx context.Context, dbName, outDir string, includeSystemCollections bool) error
	DumpAll(ctx context.Context, lister dump.DatabaseLister, outDir string, includeSystemDBs, includeSystemCollections bool) error
}

// Sender delivers the report and the archive to the webhook.
type Sender interface {
	SendMessage(ctx context.Context, content string) error
	SendFile(ctx context.Context, content, path string) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger overrides the runner's logger.
func WithLogger(log logger.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// Runner owns one run's accumulating summary and nothing else; it holds no
// mutable state shared between runs.
type Runner struct {
	cfg    *config.Config
	client stats.Client
	dumper Dumper
	sender Sender
	log    logger.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg *config.Config, client stats.Client, dumper Dumper, sender Sender, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		client: client,
		dumper: dumper,
		sender: sender,
		log:    logger.Global(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one complete backup. Any stage failure propagates out
// unhandled; only per-database stats errors are captured in the report
// instead of aborting.
func (r *Runner) Run(ctx context.Context) (*BackupSummary, error) {
	cfg := r.cfg
	start := r.now()

	// The baseline is read before anything is mutated so deltas can never be
	// contaminated by values this run is about to write.
	latestPath := filepath.Join(cfg.OutDir, LatestSummaryFilename)
	previous, err := LoadSummary(latestPath)
	if err != nil {
		r.log.Warn("previous summary unreadable, continuing without baseline",
			"path", latestPath, "error", err.Error())
		previous = nil
	}

	runDir := filepath.Join(cfg.OutDir, "backup-"+start.Format(runDirTimestamp))

	// Dumping
	r.log.Info("dump stage started", "scope", cfg.Scope(), "out", runDir)
	if cfg.DBName != "" {
		err = r.dumper.DumpOne(ctx, cfg.DBName, runDir, cfg.IncludeSystemCollections)
	} else {
		err = r.dumper.DumpAll(ctx, r.client, runDir,
			cfg.IncludeSystemDBs, cfg.IncludeSystemCollections)
	}
	if err != nil {
		return nil, fmt.Errorf("dump stage: %w", err)
	}

	// Scanning: the byte sum of dumped files is the raw baseline for the
	// compression figures, independent of the archive's own bookkeeping.
	rawBytes, fileCount, err := fsutil.ScanDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}
	r.log.Info("scan completed", "files", fileCount, "bytes", rawBytes)

	// Archiving
	zipPath := runDir + ".zip"
	zipBytes, err := archive.BuildZip(runDir, zipPath)
	if err != nil {
		return nil, fmt.Errorf("archive stage: %w", err)
	}
	r.log.Info("archive completed", "path", zipPath, "bytes", zipBytes)

	// Stats reflect storage state as of backup time, so they come after the dump.
	report := stats.Collect(ctx, r.client, stats.Options{
		DBName:           cfg.DBName,
		IncludeSystemDBs: cfg.IncludeSystemDBs,
	})

	summary := r.buildSummary(start, runDir, zipPath, rawBytes, fileCount, zipBytes, report, previous)

	// Run-scoped copy first; the latest pointer is only overwritten once the
	// run copy is durable, so a mid-run crash cannot corrupt the next
	// baseline.
	if err := summary.Write(filepath.Join(runDir, SummaryFilename)); err != nil {
		return nil, fmt.Errorf("persist stage: %w", err)
	}
	if err := summary.Write(latestPath); err != nil {
		return nil, fmt.Errorf("persist stage: %w", err)
	}

	// Text before binary: recipients get context even if the larger, slower
	// file transfer fails.
	if err := r.sender.SendMessage(ctx, renderReport(summary, cfg.IntervalHours)); err != nil {
		return nil, fmt.Errorf("report stage: %w", err)
	}

	if err := r.upload(ctx, summary); err != nil {
		return nil, fmt.Errorf("upload stage: %w", err)
	}

	r.log.Info("backup run completed",
		"scope", summary.Scope,
		"zipBytes", summary.ZipBytes,
		"duration", r.now().Sub(start).String(),
	)
	return summary, nil
}

func (r *Runner) buildSummary(start time.Time, runDir, zipPath string, rawBytes int64, fileCount int, zipBytes int64, report *stats.Report, previous *BackupSummary) *BackupSummary {
	saved, percent := compressionStats(rawBytes, zipBytes)

	prevStorage := math.NaN()
	prevZip := math.NaN()
	if previous != nil {
		if previous.Storage != nil {
			prevStorage = previous.Storage.Totals.TotalSize
		}
		prevZip = float64(previous.ZipBytes)
	}

	top := report.PerDB
	if len(top) > topDatabaseCount {
		top = top[:topDatabaseCount]
	}

	return &BackupSummary{
		CreatedAt:             start,
		Scope:                 r.cfg.Scope(),
		DBName:                r.cfg.DBName,
		RunOutDir:             runDir,
		ZipFilePath:           zipPath,
		RawBackupBytes:        rawBytes,
		ZipBytes:              zipBytes,
		CompressionSavedBytes: saved,
		CompressionPercent:    percent,
		Storage:               report,
		StorageDelta:          delta.Compute(report.Totals.TotalSize, prevStorage),
		ZipDelta:              delta.Compute(float64(zipBytes), prevZip),
		TopDatabases:          top,
		FileCount:             fileCount,
	}
}

// upload sends the archive directly when it fits under the configured
// ceiling, otherwise splits it and sends the parts sequentially.
func (r *Runner) upload(ctx context.Context, summary *BackupSummary) error {
	maxBytes := r.cfg.MaxFileBytes()
	if summary.ZipBytes <= maxBytes {
		content := fmt.Sprintf("Backup archive `%s` (%s)",
			filepath.Base(summary.ZipFilePath), fsutil.FormatBytes(summary.ZipBytes))
		return r.sender.SendFile(ctx, content, summary.ZipFilePath)
	}
	return r.uploadChunked(ctx, summary, maxBytes)
}

func (r *Runner) uploadChunked(ctx context.Context, summary *BackupSummary, maxBytes int64) error {
	partsDir := filepath.Join(summary.RunOutDir, "parts")
	parts, err := archive.SplitFile(summary.ZipFilePath, maxBytes, partsDir)
	if err != nil {
		return err
	}

	base := filepath.Base(summary.ZipFilePath)
	announcement := fmt.Sprintf(
		"Backup archive `%s` is %s, over the %d MB upload limit. Sending %d parts.",
		base, fsutil.FormatBytes(summary.ZipBytes), r.cfg.MaxFileMB, len(parts))
	if err := r.sender.SendMessage(ctx, announcement); err != nil {
		return err
	}

	// Sequential on purpose: parallel parts would each back off on their own
	// 429 and collide with each other.
	for i, part := range parts {
		if i > 0 {
			r.sleep(interPartDelay)
		}
		content := fmt.Sprintf("Part %d/%d of `%s`", i+1, len(parts), base)
		if err := r.sender.SendFile(ctx, content, part); err != nil {
			return fmt.Errorf("upload part %d/%d: %w", i+1, len(parts), err)
		}
	}

	// The recipient has no other way to know how to reassemble the archive.
	hint := fmt.Sprintf("All parts sent. Reassemble with: `cat %s.part* > %s`", base, base)
	return r.sender.SendMessage(ctx, hint)
}
