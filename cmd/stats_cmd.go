package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kebairia/mongocli/internal/fsutil"
	"github.com/kebairia/mongocli/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-database storage statistics without running a backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := stats.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		report := stats.Collect(ctx, client, stats.Options{
			DBName:           cfg.DBName,
			IncludeSystemDBs: cfg.IncludeSystemDBs,
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATABASE\tCOLLECTIONS\tDATA\tSTORAGE\tINDEXES\tTOTAL")
		for _, row := range report.PerDB {
			fmt.Fprintf(w, "%s\t%.0f\t%s\t%s\t%s\t%s\n",
				row.DB,
				row.Collections,
				fsutil.FormatBytes(int64(row.DataSize)),
				fsutil.FormatBytes(int64(row.StorageSize)),
				fsutil.FormatBytes(int64(row.IndexSize)),
				fsutil.FormatBytes(int64(row.TotalSize)),
			)
		}
		fmt.Fprintf(w, "TOTAL\t\t%s\t%s\t%s\t%s\n",
			fsutil.FormatBytes(int64(report.Totals.DataSize)),
			fsutil.FormatBytes(int64(report.Totals.StorageSize)),
			fsutil.FormatBytes(int64(report.Totals.IndexSize)),
			fsutil.FormatBytes(int64(report.Totals.TotalSize)),
		)
		if err := w.Flush(); err != nil {
			return err
		}

		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", e.DB, e.Error)
		}
		return nil
	},
}
