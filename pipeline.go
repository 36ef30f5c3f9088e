// Package bikecast prepares an hourly bike-share demand dataset for a hosted
// time-series forecasting service. The pipeline imputes gaps in the raw
// hourly table, splits the result chronologically at a backtest cutoff, and
// formats per-entity forecast records; the forecasting model itself lives in
// the external service.
package bikecast

import (
	"fmt"

	"github.com/bikecast/bikecast/backtest"
	"github.com/bikecast/bikecast/frame"
	"github.com/bikecast/bikecast/normalize"
)

// Options configures the full pipeline run.
type Options struct {
	NormalizeOptions *normalize.Options
	SplitOptions     *backtest.Options
}

// NewDefaultOptions returns options matching the hourly bike-share dataset:
// casual and registered riders as target entities and the day and weather
// attributes as the shared related series. The cutoff has no default and
// must be set before use.
func NewDefaultOptions() *Options {
	n := normalize.NewDefaultOptions()
	covariates := make([]string, 0, len(n.DayColumns)+len(n.WeatherColumns))
	covariates = append(covariates, n.DayColumns...)
	covariates = append(covariates, n.WeatherColumns...)

	return &Options{
		NormalizeOptions: n,
		SplitOptions: &backtest.Options{
			TargetColumns:    []string{"casual", "registered"},
			CovariateColumns: covariates,
		},
	}
}

// Pipeline runs the demand data preparation stages over a raw table.
type Pipeline struct {
	opt *Options

	normalizer *normalize.Normalizer
	splitter   *backtest.Splitter
}

// New creates a Pipeline using the provided options. If no options are
// provided a default is used; defaults still require a cutoff to be set.
func New(opt *Options) (*Pipeline, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}

	p := &Pipeline{
		opt:        opt,
		normalizer: normalize.New(opt.NormalizeOptions),
	}

	splitter, err := backtest.New(opt.SplitOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize backtest splitter, %w", err)
	}
	p.splitter = splitter
	return p, nil
}

// Results holds every artifact of a pipeline run. Either all of it is
// produced or the run fails before emitting anything.
type Results struct {
	Normalized *frame.Frame
	Split      *backtest.Split
	Records    *backtest.RecordSets

	// Horizon is the number of test-window timestamps following the cutoff.
	Horizon int
}

// Run executes normalization, backtest splitting, and record formatting over
// the raw observation table.
func (p *Pipeline) Run(raw *frame.Frame) (*Results, error) {
	normalized, err := p.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to normalize raw table, %w", err)
	}

	split, err := p.splitter.Split(normalized)
	if err != nil {
		return nil, fmt.Errorf("unable to split normalized table, %w", err)
	}

	records, err := split.Records()
	if err != nil {
		return nil, fmt.Errorf("unable to format records, %w", err)
	}

	return &Results{
		Normalized: normalized,
		Split:      split,
		Records:    records,
		Horizon:    split.RelatedTest.Len(),
	}, nil
}
