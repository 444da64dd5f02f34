// Package dump shells out to mongodump to produce BSON dumps of one or all
// databases. It is the pipeline's external dump collaborator.
package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/kebairia/mongocli/internal/fsutil"
	"github.com/kebairia/mongocli/internal/logger"
	"github.com/kebairia/mongocli/internal/stats"
)

// DatabaseLister enumerates database names, typically a *stats.MongoClient.
type DatabaseLister interface {
	ListDatabaseNames(ctx context.Context) ([]string, error)
}

// Option is a functional option for configuring a Dumper.
type Option func(*Dumper)

// Dumper runs mongodump against one deployment.
type Dumper struct {
	URI     string
	Timeout time.Duration
	Logger  logger.Logger
}

// NewDumper creates a Dumper for the deployment at uri.
func NewDumper(uri string, opts ...Option) *Dumper {
	d := &Dumper{
		URI:     uri,
		Timeout: 30 * time.Minute,
		Logger:  logger.Global(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithTimeout overrides the per-invocation mongodump timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dumper) {
		if timeout > 0 {
			d.Timeout = timeout
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Dumper) {
		if log != nil {
			d.Logger = log
		}
	}
}

// DumpOne dumps a single database under outDir. System collections
// (system.*) are excluded unless includeSystemCollections is set.
func (d *Dumper) DumpOne(ctx context.Context, dbName, outDir string, includeSystemCollections bool) error {
	if err := fsutil.EnsureDirectoryExist(outDir); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	args := dumpArgs(d.URI, dbName, outDir, includeSystemCollections)
	cmd := exec.CommandContext(ctx, "mongodump", args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr

	log := d.Logger
	log.Info("dump started", "database", dbName, "out", outDir)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		log.Error("dump failed", "database", dbName, "error", err.Error())
		return fmt.Errorf("mongodump failed for %q: %w", dbName, err)
	}
	log.Info("dump completed",
		"database", dbName,
		"duration", time.Since(start).String(),
	)
	return nil
}

// DumpAll dumps every database the lister reports, sequentially, under
// outDir. System databases are skipped unless includeSystemDBs is set. A
// failed dump aborts the remainder: later stages depend on a complete dump
// directory.
func (d *Dumper) DumpAll(ctx context.Context, lister DatabaseLister, outDir string, includeSystemDBs, includeSystemCollections bool) error {
	names, err := lister.ListDatabaseNames(ctx)
	if err != nil {
		return fmt.Errorf("list databases for dump: %w", err)
	}
	for _, name := range names {
		if !includeSystemDBs && stats.IsSystemDatabase(name) {
			continue
		}
		if err := d.DumpOne(ctx, name, outDir, includeSystemCollections); err != nil {
			return err
		}
	}
	return nil
}

// dumpArgs builds the mongodump argument list.
func dumpArgs(uri, dbName, outDir string, includeSystemCollections bool) []string {
	args := []string{
		"--uri=" + uri,
		"--db=" + dbName,
		"--quiet",
		"--out=" + outDir,
	}
	if !includeSystemCollections {
		args = append(args, "--excludeCollectionsWithPrefix=system.")
	}
	return args
}
