// Package stats collects per-database storage statistics from a MongoDB
// deployment. A single database's failure is recorded and never aborts the
// collection of the others.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kebairia/mongocli/internal/fsutil"
)

// System databases skipped unless explicitly requested.
var systemDatabases = map[string]bool{
	"admin":  true,
	"local":  true,
	"config": true,
}

// IsSystemDatabase reports whether name is one of the deployment-internal
// databases (admin, local, config).
func IsSystemDatabase(name string) bool {
	return systemDatabases[name]
}

// Client is the narrow slice of a MongoDB connection the collector needs.
type Client interface {
	// ListDatabaseNames enumerates database names visible to the connection.
	ListDatabaseNames(ctx context.Context) ([]string, error)
	// DatabaseStats runs the dbStats command against one database and returns
	// the raw result document.
	DatabaseStats(ctx context.Context, name string) (map[string]any, error)
}

// Options control which databases are examined.
type Options struct {
	// DBName restricts collection to a single database when non-empty.
	DBName string
	// IncludeSystemDBs keeps admin/local/config in the enumeration.
	IncludeSystemDBs bool
}

// Row holds the storage metrics for one database.
type Row struct {
	DB          string  `json:"db"`
	Collections float64 `json:"collections"`
	DataSize    float64 `json:"dataSize"`
	StorageSize float64 `json:"storageSize"`
	IndexSize   float64 `json:"indexSize"`
	TotalSize   float64 `json:"totalSize"`
}

// CollectError records a single database whose stats query failed. The
// wildcard name "*" marks a failed enumeration.
type CollectError struct {
	DB    string `json:"db"`
	Error string `json:"error"`
}

// Totals aggregates metrics over all successfully examined databases.
type Totals struct {
	DataSize    float64 `json:"dataSize"`
	StorageSize float64 `json:"storageSize"`
	IndexSize   float64 `json:"indexSize"`
	TotalSize   float64 `json:"totalSize"`
}

// Report is the outcome of one collection pass, derived fresh each run.
type Report struct {
	PerDB       []Row          `json:"perDb"`
	Errors      []CollectError `json:"errors"`
	Totals      Totals         `json:"totals"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// rawStats mirrors the numeric fields of a dbStats result document.
type rawStats struct {
	Collections float64 `mapstructure:"collections"`
	DataSize    float64 `mapstructure:"dataSize"`
	StorageSize float64 `mapstructure:"storageSize"`
	IndexSize   float64 `mapstructure:"indexSize"`
}

// Collect gathers storage statistics for the databases selected by opts.
// Failures are captured per database; Collect itself never returns an error.
func Collect(ctx context.Context, client Client, opts Options) *Report {
	report := &Report{
		PerDB:       []Row{},
		Errors:      []CollectError{},
		GeneratedAt: time.Now().UTC(),
	}

	names, err := targetDatabases(ctx, client, opts)
	if err != nil {
		// Enumeration failure yields an empty report with a wildcard error,
		// not a fatal run.
		report.Errors = append(report.Errors, CollectError{DB: "*", Error: err.Error()})
		return report
	}

	for _, name := range names {
		doc, err := client.DatabaseStats(ctx, name)
		if err != nil {
			report.Errors = append(report.Errors, CollectError{DB: name, Error: err.Error()})
			continue
		}
		row, err := decodeRow(name, doc)
		if err != nil {
			report.Errors = append(report.Errors, CollectError{DB: name, Error: err.Error()})
			continue
		}
		report.PerDB = append(report.PerDB, row)
		report.Totals.DataSize += row.DataSize
		report.Totals.StorageSize += row.StorageSize
		report.Totals.IndexSize += row.IndexSize
		report.Totals.TotalSize += row.TotalSize
	}

	// Largest first; ties keep enumeration order.
	sort.SliceStable(report.PerDB, func(i, j int) bool {
		return report.PerDB[i].TotalSize > report.PerDB[j].TotalSize
	})
	return report
}

func targetDatabases(ctx context.Context, client Client, opts Options) ([]string, error) {
	if opts.DBName != "" {
		return []string{opts.DBName}, nil
	}
	names, err := client.ListDatabaseNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	if opts.IncludeSystemDBs {
		return names, nil
	}
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if !systemDatabases[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// decodeRow coerces a raw dbStats document into a Row. Weak typing handles the
// int32/int64/double variance MongoDB exhibits across versions; non-finite or
// missing values fall back to 0.
func decodeRow(name string, doc map[string]any) (Row, error) {
	var raw rawStats
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return Row{}, fmt.Errorf("build stats decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return Row{}, fmt.Errorf("decode dbStats for %q: %w", name, err)
	}

	row := Row{
		DB:          name,
		Collections: fsutil.SafeNumber(raw.Collections),
		DataSize:    fsutil.SafeNumber(raw.DataSize),
		StorageSize: fsutil.SafeNumber(raw.StorageSize),
		IndexSize:   fsutil.SafeNumber(raw.IndexSize),
	}
	row.TotalSize = row.StorageSize + row.IndexSize
	return row, nil
}
