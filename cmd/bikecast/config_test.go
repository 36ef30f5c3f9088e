package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	raw := `
raw_csv: data/hour.csv
cutoff: "2012-10-01 00:00:00"
target_columns: [casual, registered]
service_url: http://localhost:8080
log_level: debug
`
	path := filepath.Join(t.TempDir(), "bikecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "data/hour.csv", cfg.RawCSV)
	assert.Equal(t, "http://localhost:8080", cfg.ServiceURL)
	assert.Equal(t, "debug", cfg.LogLevel)

	// defaults survive the overlay
	assert.Equal(t, "datetime", cfg.TimeColumn)
	assert.Equal(t, "cnt", cfg.TotalColumn)
	assert.Equal(t, []string{"weathersit", "temp", "atemp", "hum", "windspeed"}, cfg.WeatherColumns)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPipelineOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cutoff = "2012-10-01 00:00:00"

	opt, err := cfg.PipelineOptions()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2012, 10, 1, 0, 0, 0, 0, time.UTC), opt.SplitOptions.Cutoff)
	assert.Equal(t, time.Hour, opt.NormalizeOptions.Freq)
	assert.Equal(t, []string{"casual", "registered", "cnt"}, opt.NormalizeOptions.DemandColumns)
	assert.Equal(
		t,
		[]string{"season", "holiday", "weekday", "workingday", "weathersit", "temp", "atemp", "hum", "windspeed"},
		opt.SplitOptions.CovariateColumns,
	)
}

func TestPipelineOptionsBadCutoff(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cutoff = "october"
	_, err := cfg.PipelineOptions()
	assert.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Cutoff = "2012-10-01 00:00:00"
	cfg.Freq = "hourly"
	_, err = cfg.PipelineOptions()
	assert.Error(t, err)
}
