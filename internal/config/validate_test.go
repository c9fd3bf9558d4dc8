package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

/*
TestValidate_Defaults verifies that the default configuration is valid as-is.
*/
func TestValidate_Defaults(t *testing.T) {
	issues := Validate(Default())
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

/*
TestValidate_Errors checks each blocking finding in isolation.
*/
func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
		msg    string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = " " }, "data_dir", "must not be empty"},
		{"bad glob", func(c *Config) { c.Pattern = "[" }, "pattern", "invalid glob"},
		{"nested split", func(c *Config) { c.Split = "a/b" }, "split", "single sub-directory"},
		{"empty output", func(c *Config) { c.Output = "" }, "output", "must not be empty"},
		{"save without dir", func(c *Config) { c.SaveImages = true; c.ImagesDir = "" }, "images_dir", "requires a non-empty"},
		{"failures is output", func(c *Config) { c.FailuresFile = "./" + c.Output }, "failures", "same file as output"},
		{"negative progress", func(c *Config) { c.ProgressEvery = -1 }, "progress_every", ">= 0"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers", ">= 1"},
		{"negative sample", func(c *Config) { c.Sample = -3 }, "sample", ">= 0"},
		{"empty job", func(c *Config) { c.Job = "" }, "job", "must not be empty"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format", "unknown format"},
		{"pushgateway without url", func(c *Config) { c.Metrics.Backend = "pushgateway"; c.Metrics.PushgatewayURL = "" }, "metrics.pushgateway_url", "requires a URL"},
		{"datadog without addr", func(c *Config) { c.Metrics.Backend = "datadog"; c.Metrics.StatsdAddr = "" }, "metrics.statsd_addr", "requires a statsd address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			issues := Validate(c)
			assert.True(t, hasIssue(t, issues, SeverityError, tt.path, tt.msg), "issues: %+v", issues)
			assert.True(t, HasErrors(issues))
		})
	}
}

/*
TestValidate_Warnings checks findings that are surfaced but do not block.
*/
func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
		msg    string
	}{
		{"non csv output", func(c *Config) { c.Output = "out.tsv" }, "output", "does not end in .csv"},
		{"manifest without images", func(c *Config) { c.ManifestDB = "manifest.db" }, "manifest", "only populated"},
		{"sample outside info", func(c *Config) { c.Sample = 2 }, "sample", "ignored"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level", "unknown level"},
		{"unknown backend", func(c *Config) { c.Metrics.Backend = "statsite" }, "metrics.backend", "metrics disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			issues := Validate(c)
			assert.True(t, hasIssue(t, issues, SeverityWarning, tt.path, tt.msg), "issues: %+v", issues)
			assert.False(t, HasErrors(issues))
		})
	}
}

/*
TestValidate_InfoOnlySkipsOutput verifies that output settings are not
checked when nothing is written.
*/
func TestValidate_InfoOnlySkipsOutput(t *testing.T) {
	c := Default()
	c.InfoOnly = true
	c.Sample = 3
	c.Output = ""
	c.SaveImages = true
	c.ImagesDir = ""
	assert.Empty(t, Validate(c))
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "workers", Message: "workers must be >= 1"}
	assert.Equal(t, "error at workers: workers must be >= 1", iss.Error())
}
