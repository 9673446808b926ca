// Command hangouts-import turns a Google Takeout Hangouts export into per-conversation message files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/hangouts-import/migration"
	"github.com/theimaginaryfoundation/hangouts-import/migration/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "hangouts-import",
		Short: "Convert a Hangouts export into normalized messages",
		Long: `hangouts-import streams a Google Takeout Hangouts.json export and writes one JSON file per
conversation, an index.jsonl listing them, and records.json holding a deduplicated record per message.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.AddCommand(newRunCmd(stdout))
	root.AddCommand(newSchemaCmd(stdout))
	return root
}

func newRunCmd(stdout io.Writer) *cobra.Command {
	var configPath string
	flagCfg := defaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import a Hangouts export",
		Long: `Import a Hangouts export.

Settings are read from defaults, then --config, then HANGOUTS_* environment variables, then flags.

Examples:
  hangouts-import run --in Takeout/Hangouts/Hangouts.json --out hangouts
  HANGOUTS_SELF_NAME="Alice" hangouts-import run --pretty --overwrite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flagCfg)
			cfg.InputPath = filepath.Clean(cfg.InputPath)
			cfg.OutputDir = filepath.Clean(cfg.OutputDir)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&flagCfg.InputPath, "in", flagCfg.InputPath, "Path to Hangouts.json (Google Takeout export)")
	f.StringVar(&flagCfg.OutputDir, "out", flagCfg.OutputDir, "Directory to write conversation files into")
	f.StringVar(&flagCfg.UnitKey, "unit-key", flagCfg.UnitKey, "Field name conversations are nested under")
	f.IntVar(&flagCfg.Concurrency, "concurrency", 0, "Max conversations processed at once (0 = unbounded)")
	f.StringVar(&flagCfg.Locale, "locale", "", "Locale recorded on the run")
	f.StringVar(&flagCfg.SelfName, "self-name", "", "Display name of the account owner, marks records as is_from_me")
	f.BoolVar(&flagCfg.Pretty, "pretty", false, "Pretty-print each conversation file")
	f.BoolVar(&flagCfg.Overwrite, "overwrite", false, "Overwrite existing output files")
	f.StringVar(&flagCfg.MetricsOut, "metrics-out", "", "Write run metrics in Prometheus text format to this file")
	f.StringVar(&flagCfg.Logging.Level, "log-level", flagCfg.Logging.Level, "Log level (debug, info, warn, error)")
	f.StringVar(&flagCfg.Logging.Format, "log-format", flagCfg.Logging.Format, "Log format (json or console)")
	return cmd
}

// applyFlags copies every flag the user set explicitly from flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *Config, flags Config) {
	changed := cmd.Flags().Changed
	if changed("in") {
		cfg.InputPath = flags.InputPath
	}
	if changed("out") {
		cfg.OutputDir = flags.OutputDir
	}
	if changed("unit-key") {
		cfg.UnitKey = flags.UnitKey
	}
	if changed("concurrency") {
		cfg.Concurrency = flags.Concurrency
	}
	if changed("locale") {
		cfg.Locale = flags.Locale
	}
	if changed("self-name") {
		cfg.SelfName = flags.SelfName
	}
	if changed("pretty") {
		cfg.Pretty = flags.Pretty
	}
	if changed("overwrite") {
		cfg.Overwrite = flags.Overwrite
	}
	if changed("metrics-out") {
		cfg.MetricsOut = flags.MetricsOut
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.Logging.Level
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.Logging.Format
	}
}

func runImport(ctx context.Context, cfg Config, stdout io.Writer) error {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("in", cfg.InputPath), zap.String("out", cfg.OutputDir))

	reg := prometheus.NewRegistry()
	ingester := migration.NewIngester(migration.IngestOptions{
		UnitKey:     cfg.UnitKey,
		Concurrency: cfg.Concurrency,
		Locale:      cfg.Locale,
	}, logger, migration.NewMetrics(reg))

	res, err := ingester.IngestFile(ctx, cfg.InputPath)
	if err != nil {
		logger.Error(ctx, "import failed", zap.Error(err))
		return err
	}
	ctx = logging.ContextWithRunID(ctx, res.RunID)

	stats, err := migration.WriteArchive(ctx, cfg.OutputDir, res, migration.WriteOptions{
		OverwriteExisting: cfg.Overwrite,
		Pretty:            cfg.Pretty,
		SelfName:          cfg.SelfName,
		DirMode:           0o755,
	})
	if err != nil {
		logger.Error(ctx, "write failed", zap.Error(err))
		return err
	}

	if cfg.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	logger.Info(ctx, "import finished",
		zap.Int("conversations", stats.ConversationsWritten),
		zap.Int("failed", len(res.Failed())),
		zap.Int("records", stats.RecordsWritten),
	)
	fmt.Fprintf(stdout, "conversations_written=%d failed=%d messages=%d participants=%d records_written=%d bytes_written=%d out_dir=%s run_id=%s\n",
		stats.ConversationsWritten, len(res.Failed()), len(res.Messages()), len(res.Participants),
		stats.RecordsWritten, stats.BytesWritten, cfg.OutputDir, res.RunID)
	return nil
}

func newSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a conversation output file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := migration.MessageSchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, string(b))
			return err
		},
	}
}
