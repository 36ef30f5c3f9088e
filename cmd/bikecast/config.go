package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bikecast/bikecast"
	"github.com/bikecast/bikecast/backtest"
	"github.com/bikecast/bikecast/calendar"
	"github.com/bikecast/bikecast/normalize"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of a pipeline run.
type Config struct {
	RawCSV     string `yaml:"raw_csv"`
	OutDir     string `yaml:"out_dir"`
	TimeColumn string `yaml:"time_column"`
	TimeLayout string `yaml:"time_layout"`

	Cutoff string `yaml:"cutoff"`
	Freq   string `yaml:"freq"`

	TargetColumns   []string `yaml:"target_columns"`
	TotalColumn     string   `yaml:"total_column"`
	DayColumns      []string `yaml:"day_columns"`
	WeatherColumns  []string `yaml:"weather_columns"`
	ConditionColumn string   `yaml:"condition_column"`

	// ServiceURL, when set, submits the inference records to the forecasting
	// service and writes predictions, scores, and the backtest plot.
	ServiceURL string `yaml:"service_url"`

	LogLevel string `yaml:"log_level"`
}

// NewDefaultConfig returns the configuration matching the hourly bike-share
// dataset.
func NewDefaultConfig() *Config {
	return &Config{
		RawCSV:          "hour.csv",
		OutDir:          "out",
		TimeColumn:      "datetime",
		TimeLayout:      backtest.StartLayout,
		Freq:            "1h",
		TargetColumns:   []string{"casual", "registered"},
		TotalColumn:     "cnt",
		DayColumns:      []string{"season", "holiday", "weekday", "workingday"},
		WeatherColumns:  []string{"weathersit", "temp", "atemp", "hum", "windspeed"},
		ConditionColumn: "weathersit",
		LogLevel:        "info",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file, %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file, %w", err)
	}
	return cfg, nil
}

// PipelineOptions translates the configuration into pipeline options.
func (c *Config) PipelineOptions() (*bikecast.Options, error) {
	cutoff, err := time.Parse(c.TimeLayout, c.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("unable to parse cutoff %q, %w", c.Cutoff, err)
	}
	freq, err := time.ParseDuration(c.Freq)
	if err != nil {
		return nil, fmt.Errorf("unable to parse freq %q, %w", c.Freq, err)
	}

	demand := make([]string, 0, len(c.TargetColumns)+1)
	demand = append(demand, c.TargetColumns...)
	if c.TotalColumn != "" {
		demand = append(demand, c.TotalColumn)
	}
	covariates := make([]string, 0, len(c.DayColumns)+len(c.WeatherColumns))
	covariates = append(covariates, c.DayColumns...)
	covariates = append(covariates, c.WeatherColumns...)

	return &bikecast.Options{
		NormalizeOptions: &normalize.Options{
			Freq:             freq,
			DemandColumns:    demand,
			DayColumns:       c.DayColumns,
			WeatherColumns:   c.WeatherColumns,
			ConditionColumn:  c.ConditionColumn,
			ConditionMin:     1,
			ConditionMax:     4,
			TotalColumn:      c.TotalColumn,
			ComponentColumns: c.TargetColumns,
			Calendar:         calendar.NewUS(),
		},
		SplitOptions: &backtest.Options{
			Cutoff:           cutoff.UTC(),
			TargetColumns:    c.TargetColumns,
			CovariateColumns: covariates,
		},
	}, nil
}
