package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DSEXTRACT_LOG_LEVEL", "debug")
	t.Setenv("DSEXTRACT_WORKERS", "4")
	t.Setenv("DSEXTRACT_SAVE_IMAGES", "true")

	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 4, c.Workers)
	assert.True(t, c.SaveImages)
	assert.Equal(t, DefaultOutput, c.Output)
}

func TestLoad_ConfigFile(t *testing.T) {
	const doc = `
data_dir: /srv/vqa/data
split: train
output: out/rows.csv
save_images: true
images_dir: out/images
progress_every: 50
metrics:
  backend: datadog
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/vqa/data", c.DataDir)
	assert.Equal(t, "train", c.Split)
	assert.Equal(t, "out/rows.csv", c.Output)
	assert.True(t, c.SaveImages)
	assert.Equal(t, "out/images", c.ImagesDir)
	assert.Equal(t, 50, c.ProgressEvery)
	assert.Equal(t, "datadog", c.Metrics.Backend)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, DefaultStatsdAddr, c.Metrics.StatsdAddr)
	assert.Equal(t, DefaultPattern, c.Pattern)
}
