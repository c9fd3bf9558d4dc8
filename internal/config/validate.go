package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the config key the finding refers to (e.g. "images_dir",
// "metrics.backend"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c. It does not touch the filesystem;
// missing directories are reported by the run itself so they surface with
// the same errors whether or not validation ran first.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.DataDir) == "" {
		issues = append(issues, Issue{SeverityError, "data_dir", "data_dir must not be empty"})
	}
	if strings.TrimSpace(c.Pattern) == "" {
		issues = append(issues, Issue{SeverityError, "pattern", "pattern must not be empty"})
	} else if _, err := filepath.Match(c.Pattern, ""); err != nil {
		issues = append(issues, Issue{SeverityError, "pattern", fmt.Sprintf("invalid glob %q: %v", c.Pattern, err)})
	}
	if strings.ContainsAny(c.Split, `/\`) || c.Split == ".." {
		issues = append(issues, Issue{SeverityError, "split", "split must name a single sub-directory"})
	}

	if !c.InfoOnly {
		issues = append(issues, validateOutput(c)...)
	}
	if c.Sample < 0 {
		issues = append(issues, Issue{SeverityError, "sample", "sample must be >= 0"})
	}
	if c.Sample > 0 && !c.InfoOnly {
		issues = append(issues, Issue{SeverityWarning, "sample", "sample only applies with info_only; ignored"})
	}

	if c.ProgressEvery < 0 {
		issues = append(issues, Issue{SeverityError, "progress_every", "progress_every must be >= 0 (0 reports per shard only)"})
	}
	if c.Workers < 1 {
		issues = append(issues, Issue{SeverityError, "workers", "workers must be >= 1"})
	} else if c.Workers > 4*runtime.NumCPU() {
		issues = append(issues, Issue{SeverityWarning, "workers", fmt.Sprintf("workers=%d exceeds 4x CPU count; decoded shards are held in memory", c.Workers)})
	}

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it is used for metrics labeling and identifying runs"})
	}

	issues = append(issues, validateLog(c.Log)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

func validateOutput(c Config) []Issue {
	var issues []Issue
	out := strings.TrimSpace(c.Output)
	if out == "" {
		return append(issues, Issue{SeverityError, "output", "output must not be empty"})
	}
	if !strings.EqualFold(filepath.Ext(out), ".csv") {
		issues = append(issues, Issue{SeverityWarning, "output", fmt.Sprintf("output %q does not end in .csv", out)})
	}
	if c.SaveImages && strings.TrimSpace(c.ImagesDir) == "" {
		issues = append(issues, Issue{SeverityError, "images_dir", "save_images requires a non-empty images_dir"})
	}
	if !c.SaveImages && c.ManifestDB != "" {
		issues = append(issues, Issue{SeverityWarning, "manifest", "manifest is only populated when save_images is enabled"})
	}
	for _, p := range []struct{ key, val string }{{"failures", c.FailuresFile}, {"manifest", c.ManifestDB}} {
		if p.val != "" && filepath.Clean(p.val) == filepath.Clean(out) {
			issues = append(issues, Issue{SeverityError, p.key, fmt.Sprintf("%s must not be the same file as output", p.key)})
		}
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, Issue{SeverityWarning, "log.level", fmt.Sprintf("unknown level %q; using info", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{SeverityError, "log.format", fmt.Sprintf("unknown format %q; want text or json", l.Format)})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a URL"})
		}
	case "datadog":
		if strings.TrimSpace(m.StatsdAddr) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.statsd_addr", "datadog backend requires a statsd address"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)})
	}
	return issues
}
