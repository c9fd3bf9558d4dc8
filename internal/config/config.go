// Package config defines the configuration model for an extraction run.
//
// Values come from three layers, lowest to highest precedence: defaults
// registered by SetDefaults, an optional YAML/JSON config file, environment
// variables prefixed DSEXTRACT_ (nested keys use "_", e.g. DSEXTRACT_LOG_LEVEL),
// and command-line flags bound by the CLI. All layers are merged by viper and
// decoded into Config by Load.
//
// Example dsextract.yaml:
//
//	data_dir: pmc_clinical_VQA_raw/data
//	output: extracted_dataset.csv
//	save_images: true
//	images_dir: images
//	log:
//	  level: info
//	  file: extraction.log
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://localhost:9091
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything one extraction run needs.
type Config struct {
	// DataDir is the directory holding the shard files.
	DataDir string `mapstructure:"data_dir"`
	// Split optionally selects a sub-directory of DataDir, following the
	// <data-dir>/<split>/<shard-file> convention (e.g. "train").
	Split string `mapstructure:"split"`
	// Pattern is the glob matched against shard file names.
	Pattern string `mapstructure:"pattern"`

	// Output is the path of the CSV file produced by the run.
	Output string `mapstructure:"output"`
	// WriteBOM prefixes the output with a UTF-8 byte order mark.
	WriteBOM bool `mapstructure:"bom"`

	// SaveImages extracts embedded image payloads to ImagesDir.
	SaveImages bool `mapstructure:"save_images"`
	// ImagesDir receives extracted PNG files.
	ImagesDir string `mapstructure:"images_dir"`

	// InfoOnly lists the shards (and optionally samples the first one)
	// without extracting anything.
	InfoOnly bool `mapstructure:"info_only"`
	// Sample is the number of records printed from the first shard in info
	// mode. Zero disables sampling.
	Sample int `mapstructure:"sample"`

	// ProgressEvery is the number of records between progress updates.
	ProgressEvery int `mapstructure:"progress_every"`
	// Workers is the number of shards decoded ahead of normalization.
	Workers int `mapstructure:"workers"`

	// FailuresFile, when set, receives a CSV report of every skipped shard
	// and failed record.
	FailuresFile string `mapstructure:"failures"`
	// ManifestDB, when set, receives a SQLite catalog of extracted images.
	ManifestDB string `mapstructure:"manifest"`

	// Job labels metrics and log lines for this run.
	Job string `mapstructure:"job"`

	Log     Log     `mapstructure:"log"`
	Metrics Metrics `mapstructure:"metrics"`
}

// Log configures the run logger.
type Log struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

// Metrics selects and configures a metrics backend.
type Metrics struct {
	// Backend is one of none, pushgateway, datadog.
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	StatsdAddr     string `mapstructure:"statsd_addr"`
}

// Defaults.
const (
	DefaultDataDir        = "pmc_clinical_VQA_raw/data"
	DefaultPattern        = "*.parquet"
	DefaultOutput         = "extracted_dataset.csv"
	DefaultImagesDir      = "images"
	DefaultProgressEvery  = 1000
	DefaultWorkers        = 1
	DefaultJob            = "dsextract"
	DefaultLogLevel       = "info"
	DefaultLogFile        = "extraction.log"
	DefaultLogFormat      = "text"
	DefaultMetricsBackend = "none"
	DefaultPushgatewayURL = "http://localhost:9091"
	DefaultStatsdAddr     = "127.0.0.1:8125"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DSEXTRACT"

// Default returns a Config populated with defaults only.
func Default() Config {
	return Config{
		DataDir:       DefaultDataDir,
		Pattern:       DefaultPattern,
		Output:        DefaultOutput,
		ImagesDir:     DefaultImagesDir,
		ProgressEvery: DefaultProgressEvery,
		Workers:       DefaultWorkers,
		Job:           DefaultJob,
		Log: Log{
			Level:  DefaultLogLevel,
			File:   DefaultLogFile,
			Format: DefaultLogFormat,
		},
		Metrics: Metrics{
			Backend:        DefaultMetricsBackend,
			PushgatewayURL: DefaultPushgatewayURL,
			StatsdAddr:     DefaultStatsdAddr,
		},
	}
}

// SetDefaults registers defaults on v and enables environment overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("split", d.Split)
	v.SetDefault("pattern", d.Pattern)
	v.SetDefault("output", d.Output)
	v.SetDefault("bom", d.WriteBOM)
	v.SetDefault("save_images", d.SaveImages)
	v.SetDefault("images_dir", d.ImagesDir)
	v.SetDefault("info_only", d.InfoOnly)
	v.SetDefault("sample", d.Sample)
	v.SetDefault("progress_every", d.ProgressEvery)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("failures", d.FailuresFile)
	v.SetDefault("manifest", d.ManifestDB)
	v.SetDefault("job", d.Job)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.backend", d.Metrics.Backend)
	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.statsd_addr", d.Metrics.StatsdAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the merged configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}
