package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/mongocli/internal/dump"
	"github.com/kebairia/mongocli/internal/operations"
	"github.com/kebairia/mongocli/internal/stats"
	"github.com/kebairia/mongocli/internal/webhook"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one backup: dump, archive, report, upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := stats.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		sender, err := webhook.NewClient(cfg.WebhookURL)
		if err != nil {
			return err
		}
		dumper := dump.NewDumper(cfg.MongoURI, dump.WithTimeout(cfg.DumpTimeout))

		runner := operations.NewRunner(cfg, client, dumper, sender)
		summary, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("backup run: %w", err)
		}
		fmt.Printf("backup complete: %s (%d files, archive %d bytes)\n",
			summary.RunOutDir, summary.FileCount, summary.ZipBytes)
		return nil
	},
}
