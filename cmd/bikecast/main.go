// Command bikecast runs the demand preparation pipeline over a raw hourly
// CSV and writes the normalized table, the flat long-format train/test CSVs,
// and the three JSON Lines record sets. With a service URL configured it
// also submits the inference records to the forecasting service and writes
// predictions, per-entity scores, and a backtest plot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bikecast/bikecast"
	"github.com/bikecast/bikecast/client"
	"github.com/bikecast/bikecast/export"
	"github.com/goccy/go-json"
	"github.com/pkg/profile"
)

func main() {
	configPath := flag.String("config", "bikecast.yaml", "path to the YAML config file")
	cpuProfile := flag.Bool("cpuprofile", false, "write a CPU profile to the output directory")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("unable to load config", "error", err.Error())
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	if *cpuProfile {
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			slog.Error("unable to create output directory", "error", err.Error())
			os.Exit(1)
		}
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.OutDir)).Stop()
	}

	if err := run(cfg); err != nil {
		slog.Error("pipeline run failed", "error", err.Error())
		os.Exit(1)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func run(cfg *Config) error {
	opt, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}
	p, err := bikecast.New(opt)
	if err != nil {
		return err
	}

	rawFile, err := os.Open(cfg.RawCSV)
	if err != nil {
		return err
	}
	defer rawFile.Close()

	raw, err := export.ReadRawCSV(rawFile, cfg.TimeColumn, cfg.TimeLayout)
	if err != nil {
		return fmt.Errorf("unable to read %s, %w", cfg.RawCSV, err)
	}
	slog.Info("read raw table", "rows", raw.Len(), "columns", len(raw.Columns()))

	res, err := p.Run(raw)
	if err != nil {
		return err
	}
	slog.Info("pipeline complete",
		"normalized_rows", res.Normalized.Len(),
		"entities", res.Split.Entities,
		"horizon", res.Horizon,
	)

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return err
	}
	if err := writeArtifacts(cfg, res); err != nil {
		return err
	}

	if cfg.ServiceURL == "" {
		return nil
	}
	return forecast(cfg, res)
}

func writeArtifacts(cfg *Config, res *bikecast.Results) error {
	artifacts := []struct {
		name  string
		write func(*os.File) error
	}{
		{"normalized.csv", func(f *os.File) error {
			return export.WriteCSV(f, res.Normalized, cfg.TimeColumn, cfg.TimeLayout)
		}},
		{"target_train.csv", func(f *os.File) error {
			return export.WriteLongCSV(f, res.Split.Train, cfg.TimeLayout)
		}},
		{"target_test.csv", func(f *os.File) error {
			return export.WriteLongCSV(f, res.Split.Test, cfg.TimeLayout)
		}},
		{"train.jsonl", func(f *os.File) error {
			return export.WriteRecords(f, res.Records.Training)
		}},
		{"full.jsonl", func(f *os.File) error {
			return export.WriteRecords(f, res.Records.Full)
		}},
		{"inference.jsonl", func(f *os.File) error {
			return export.WriteRecords(f, res.Records.Inference)
		}},
	}
	for _, a := range artifacts {
		if err := writeFile(cfg, a.name, a.write); err != nil {
			return err
		}
	}
	return nil
}

func forecast(cfg *Config, res *bikecast.Results) error {
	c := client.New(cfg.ServiceURL)
	preds, err := c.Forecast(context.Background(), res.Records.Inference, res.Horizon)
	if err != nil {
		return fmt.Errorf("unable to fetch predictions, %w", err)
	}

	if err := writeFile(cfg, "predictions.json", func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	}); err != nil {
		return err
	}

	actualByEntity := make(map[string][]float64, len(res.Split.Entities))
	for _, p := range res.Split.Test {
		actualByEntity[p.Entity] = append(actualByEntity[p.Entity], p.Demand)
	}
	for i, entity := range res.Split.Entities {
		scores, err := bikecast.NewScores(preds[i], actualByEntity[entity])
		if err != nil {
			return fmt.Errorf("unable to score entity %q, %w", entity, err)
		}
		slog.Info("backtest scores",
			"entity", entity,
			"mse", scores.MSE,
			"mape", scores.MAPE,
			"quantile_loss", scores.QuantileLoss,
		)
	}

	return bikecast.PlotBacktest(filepath.Join(cfg.OutDir, "backtest.html"), res, preds)
}

func writeFile(cfg *Config, name string, write func(*os.File) error) error {
	f, err := os.Create(filepath.Join(cfg.OutDir, name))
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
