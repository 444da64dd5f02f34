package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/mongocli/internal/config"
	"github.com/kebairia/mongocli/internal/logger"
	"github.com/kebairia/mongocli/internal/vault"
)

var (
	flagWebhookURL               string
	flagMongoURI                 string
	flagDBName                   string
	flagOutDir                   string
	flagMaxFileMB                int
	flagIntervalHours            int
	flagIncludeSystemDBs         bool
	flagIncludeSystemCollections bool

	rootCmd = &cobra.Command{
		Use:   "mongocli",
		Short: "Back up MongoDB deployments and deliver the archives to a webhook",
		Long: `mongocli dumps a MongoDB deployment, packages the dump into a zip
archive, tracks storage size trends across runs, and delivers the report and
the archive (split into parts when oversized) to a Discord webhook.`,
	}
)

// Execute runs the root command.
func Execute() {
	log, err := logger.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err.Error())
		logger.Cleanup()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagWebhookURL, "webhook-url", "", "Discord webhook URL (env MONGOCLI_WEBHOOK_URL)")
	pf.StringVar(&flagMongoURI, "mongo-uri", "", "MongoDB connection string (env MONGOCLI_MONGO_URI)")
	pf.StringVar(&flagDBName, "db", "", "back up a single database (default: all non-system databases)")
	pf.StringVar(&flagOutDir, "out-dir", "", "output directory root (env MONGOCLI_OUT_DIR)")
	pf.IntVar(&flagMaxFileMB, "max-file-mb", 0, "per-file upload ceiling in MB before chunking")
	pf.IntVar(&flagIntervalHours, "interval-hours", 0, "advisory scheduling interval, echoed in the report")
	pf.BoolVar(&flagIncludeSystemDBs, "include-system-dbs", false, "include admin/local/config databases")
	pf.BoolVar(&flagIncludeSystemCollections, "include-system-collections", false, "include system.* collections")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(statsCmd)
}

// buildConfig merges flags over environment over defaults, then consults the
// Vault secret source when one is configured.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.Option
	flags := cmd.Flags()
	if flags.Changed("webhook-url") {
		opts = append(opts, config.WithWebhookURL(flagWebhookURL))
	}
	if flags.Changed("mongo-uri") {
		opts = append(opts, config.WithMongoURI(flagMongoURI))
	}
	if flags.Changed("db") {
		opts = append(opts, config.WithDBName(flagDBName))
	}
	if flags.Changed("out-dir") {
		opts = append(opts, config.WithOutDir(flagOutDir))
	}
	if flags.Changed("max-file-mb") {
		opts = append(opts, config.WithMaxFileMB(flagMaxFileMB))
	}
	if flags.Changed("interval-hours") {
		opts = append(opts, config.WithIntervalHours(flagIntervalHours))
	}
	if flags.Changed("include-system-dbs") {
		opts = append(opts, config.WithIncludeSystemDBs(flagIncludeSystemDBs))
	}
	if flags.Changed("include-system-collections") {
		opts = append(opts, config.WithIncludeSystemCollections(flagIncludeSystemCollections))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if err := resolveSecrets(cmd.Context(), cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets overlays Vault-sourced values. Explicit flags still win;
// Vault wins over environment values.
func resolveSecrets(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Vault.SecretPath == "" {
		return nil
	}

	vaultOpts := []vault.Option{vault.WithAddress(cfg.Vault.Address)}
	if cfg.Vault.RoleID != "" && cfg.Vault.ApproleName != "" {
		vaultOpts = append(vaultOpts, vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.ApproleName))
	}
	client, err := vault.NewClient(ctx, vaultOpts...)
	if err != nil {
		return fmt.Errorf("vault client init: %w", err)
	}
	secrets, err := client.ReadSecrets(ctx, cfg.Vault.SecretPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if secrets.WebhookURL != "" && !flags.Changed("webhook-url") {
		cfg.WebhookURL = secrets.WebhookURL
	}
	if secrets.MongoURI != "" && !flags.Changed("mongo-uri") {
		cfg.MongoURI = secrets.MongoURI
	}
	return nil
}
