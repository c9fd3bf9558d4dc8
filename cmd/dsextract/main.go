// Package main is the entry point for the dsextract CLI.
//
// The root command extracts a sharded parquet dataset into one CSV file;
// "bundle" packs the head of an extraction into zip archives and "version"
// prints the build version.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dsextract/internal/config"
	"dsextract/internal/datasource/shard"
	"dsextract/internal/extract"
	"dsextract/internal/inspect"
	"dsextract/internal/logging"
	"dsextract/internal/metrics"
	"dsextract/internal/metrics/datadog"
	"dsextract/internal/metrics/prompush"
	"dsextract/internal/runstate"
)

// version is set at build time via ldflags.
var version = "dev"

// errInvalidConfig is returned after validation issues have been printed.
var errInvalidConfig = errors.New("configuration is invalid")

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"data-dir":        "data_dir",
	"split":           "split",
	"pattern":         "pattern",
	"output":          "output",
	"bom":             "bom",
	"save-images":     "save_images",
	"images-dir":      "images_dir",
	"info-only":       "info_only",
	"sample":          "sample",
	"progress-every":  "progress_every",
	"workers":         "workers",
	"failures":        "failures",
	"manifest":        "manifest",
	"job":             "job",
	"log-level":       "log.level",
	"log-file":        "log.file",
	"log-format":      "log.format",
	"metrics-backend": "metrics.backend",
	"pushgateway-url": "metrics.pushgateway_url",
	"statsd-addr":     "metrics.statsd_addr",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "dsextract",
		Short: "Extract a sharded parquet dataset into one CSV file",
		Long: `dsextract reads every parquet shard of a dataset in name order, maps each
record onto a fixed 15-column row and writes the rows to a single CSV file.

Embedded image payloads are summarized with a placeholder, or with
--save-images written once per distinct payload as PNG files whose relative
paths go into the image column. Shards or records that cannot be read are
skipped, logged and counted; the run still produces output.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfigFile(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runExtract(cmd, cfg)
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (default: ./dsextract.yaml if present)")

	f := cmd.Flags()
	f.String("data-dir", d.DataDir, "directory containing the parquet shards")
	f.String("split", d.Split, "optional sub-directory of data-dir (e.g. train)")
	f.String("pattern", d.Pattern, "glob matched against shard file names")
	f.String("output", d.Output, "output CSV file")
	f.Bool("bom", d.WriteBOM, "prefix the output with a UTF-8 byte order mark")
	f.Bool("save-images", d.SaveImages, "write image payloads as PNG files")
	f.String("images-dir", d.ImagesDir, "directory receiving PNG files")
	f.Bool("info-only", d.InfoOnly, "list the shards without extracting")
	f.Int("sample", d.Sample, "with --info-only, print the first N records of the first shard")
	f.Int("progress-every", d.ProgressEvery, "records between progress reports (0 reports per shard only)")
	f.Int("workers", d.Workers, "shards decoded ahead of normalization")
	f.String("failures", d.FailuresFile, "write a CSV report of skipped shards and records")
	f.String("manifest", d.ManifestDB, "write a SQLite catalog of saved images")
	f.String("job", d.Job, "job name used for metrics and logs")
	f.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	f.String("log-file", d.Log.File, "log file (empty disables)")
	f.String("log-format", d.Log.Format, "log format: text or json")
	f.String("metrics-backend", d.Metrics.Backend, "metrics backend: none, pushgateway, datadog")
	f.String("pushgateway-url", d.Metrics.PushgatewayURL, "Prometheus Pushgateway base URL")
	f.String("statsd-addr", d.Metrics.StatsdAddr, "DogStatsD address")
	bindFlags(v, f)

	cmd.AddCommand(newBundleCmd(), newVersionCmd())
	return cmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for flagName, key := range flagKeys {
		if fl := fs.Lookup(flagName); fl != nil {
			_ = v.BindPFlag(key, fl)
		}
	}
}

// readConfigFile merges --config, or ./dsextract.yaml when present.
func readConfigFile(cmd *cobra.Command, v *viper.Viper) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("dsextract")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	return nil
}

func runExtract(cmd *cobra.Command, cfg config.Config) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errInvalidConfig
	}

	run := runstate.New()
	base, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Console: stderr,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := base.With("run_id", run.ID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InfoOnly {
		return runInfo(ctx, stdout, cfg, logger)
	}

	flush := setupMetrics(cfg, run.ID, logger)
	defer flush()

	term, _ := stderr.(*os.File)
	p := extract.New(cfg, logger, extract.WithReporter(extract.NewReporter(logger, term)))

	logger.Info("starting extraction",
		"data_dir", cfg.DataDir,
		"split", cfg.Split,
		"output", cfg.Output,
		"save_images", cfg.SaveImages,
		"workers", cfg.Workers)
	if err := p.Execute(ctx, run); err != nil {
		logger.Error("extraction failed", "error", err)
		return err
	}

	fmt.Fprintln(stdout, "\nExtraction completed successfully!")
	fmt.Fprint(stdout, run.Summary().String())
	if cfg.SaveImages {
		fmt.Fprintf(stdout, "images dir:       %s\n", cfg.ImagesDir)
	}
	return nil
}

func runInfo(ctx context.Context, w io.Writer, cfg config.Config, logger hclog.Logger) error {
	info, err := inspect.Describe(shard.Locator{Pattern: cfg.Pattern, Split: cfg.Split}, cfg.DataDir)
	if err != nil {
		logger.Error("listing shards failed", "error", err)
		return err
	}
	inspect.WriteInfo(w, info)
	if cfg.Sample <= 0 {
		return nil
	}
	s, err := inspect.SampleShard(ctx, info.Shards[0], cfg.Sample)
	if err != nil {
		logger.Error("sampling shard failed", "shard", info.Shards[0], "error", err)
		return err
	}
	inspect.WriteSample(w, s)
	return nil
}

// setupMetrics installs the configured backend and returns the function
// that flushes it. Backend failures disable metrics rather than the run.
func setupMetrics(cfg config.Config, runID string, logger hclog.Logger) func() {
	m := cfg.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.StatsdAddr,
			GlobalTags: []string{"job:" + cfg.Job, "run_id:" + runID},
		})
	case "", "none":
		logger.Debug("metrics disabled")
		return func() {}
	default:
		logger.Warn("unknown metrics backend; metrics disabled", "backend", m.Backend)
		return func() {}
	}
	if err != nil {
		logger.Warn("metrics backend unavailable; using nop", "backend", m.Backend, "error", err)
		return func() {}
	}

	logger.Info("metrics enabled", "backend", m.Backend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush failed", "error", err)
		}
		metrics.Reset()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
