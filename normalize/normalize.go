// Package normalize turns a raw, irregular hourly observation table into a
// complete, gap-free hourly table. Hours absent from the raw table are
// defined to have zero demand; day-level categorical attributes are filled
// from a daily aggregation and weather attributes by linear interpolation
// over time.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bikecast/bikecast/calendar"
	"github.com/bikecast/bikecast/frame"
	"gonum.org/v1/gonum/interp"
)

var (
	ErrDuplicateTimestamp      = errors.New("duplicate timestamp in raw table")
	ErrOffGridTimestamp        = errors.New("raw timestamp does not align with the configured sample frequency")
	ErrInsufficientData        = errors.New("not enough raw rows to normalize")
	ErrDemandMismatch          = errors.New("total demand does not equal the sum of its components")
	ErrIncompleteNormalization = errors.New("normalized table still contains missing values")
)

type Options struct {
	// Freq is the expected sample frequency of the raw table. Zero means
	// infer it from the raw time index.
	Freq time.Duration

	// DemandColumns are the demand counters. Missing hours default to 0.
	DemandColumns []string

	// DayColumns are categorical attributes constant within a calendar day,
	// filled from a daily mean aggregation.
	DayColumns []string

	// WeatherColumns are filled by linear interpolation over time.
	WeatherColumns []string

	// ConditionColumn names the discrete weather condition code among the
	// weather columns. Interpolated values are rounded to the nearest code
	// and clamped into [ConditionMin, ConditionMax].
	ConditionColumn string
	ConditionMin    float64
	ConditionMax    float64

	// TotalColumn and ComponentColumns describe the derived-sum invariant of
	// the demand counters. Leave TotalColumn empty to skip the check.
	TotalColumn      string
	ComponentColumns []string

	// Calendar, when set, derives day attributes for calendar days that have
	// no raw rows at all.
	Calendar *calendar.Calendar
}

func NewDefaultOptions() *Options {
	return &Options{
		Freq:             time.Hour,
		DemandColumns:    []string{"casual", "registered", "cnt"},
		DayColumns:       []string{"season", "holiday", "weekday", "workingday"},
		WeatherColumns:   []string{"weathersit", "temp", "atemp", "hum", "windspeed"},
		ConditionColumn:  "weathersit",
		ConditionMin:     1,
		ConditionMax:     4,
		TotalColumn:      "cnt",
		ComponentColumns: []string{"casual", "registered"},
		Calendar:         calendar.NewUS(),
	}
}

// Normalizer implements the imputation and feature normalization stage.
type Normalizer struct {
	opt *Options
}

// New creates a Normalizer using the provided options. If no options are
// provided a default is used.
func New(opt *Options) *Normalizer {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	return &Normalizer{opt: opt}
}

// Normalize produces the complete hourly table covering the raw table's full
// time range. The output has exactly one row per sample period and no
// missing values in any configured column; any other outcome is an error.
func (n *Normalizer) Normalize(raw *frame.Frame) (*frame.Frame, error) {
	t := raw.Times()
	if len(t) < 2 {
		return nil, fmt.Errorf("%d raw rows, %w", len(t), ErrInsufficientData)
	}
	for i := 1; i < len(t); i++ {
		if t[i].Equal(t[i-1]) {
			return nil, fmt.Errorf("timestamp %s, %w", t[i], ErrDuplicateTimestamp)
		}
	}
	freq := n.opt.Freq
	if freq <= 0 {
		var err error
		if freq, err = raw.EstimateFreq(); err != nil {
			return nil, err
		}
		slog.Info("inferred sample frequency", "freq", freq)
	}
	for i := 1; i < len(t); i++ {
		if t[i].Sub(t[0])%freq != 0 {
			return nil, fmt.Errorf("timestamp %s with frequency %s, %w", t[i], freq, ErrOffGridTimestamp)
		}
	}

	if err := n.checkDemandSum(raw); err != nil {
		return nil, err
	}

	index := completeIndex(t[0], t[len(t)-1], freq)
	rowAt := make(map[int64]int, len(t))
	for i, ts := range t {
		rowAt[ts.Unix()] = i
	}

	dayAgg, err := n.aggregateDays(raw, t)
	if err != nil {
		return nil, err
	}

	out, err := frame.New(index)
	if err != nil {
		return nil, err
	}

	for _, name := range n.opt.DayColumns {
		col := make([]float64, len(index))
		for i, ts := range index {
			day := dayKey(ts)
			agg, exists := dayAgg[day]
			if !exists {
				col[i] = n.calendarValue(ts, name)
				continue
			}
			col[i] = agg[name]
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	for _, name := range n.opt.WeatherColumns {
		rawCol, err := raw.Column(name)
		if err != nil {
			return nil, err
		}
		col := make([]float64, len(index))
		for i, ts := range index {
			if j, exists := rowAt[ts.Unix()]; exists {
				col[i] = rawCol[j]
			} else {
				col[i] = math.NaN()
			}
		}
		if err := interpolate(index, col); err != nil {
			return nil, fmt.Errorf("column %q, %w", name, err)
		}
		if name == n.opt.ConditionColumn {
			roundClamp(col, n.opt.ConditionMin, n.opt.ConditionMax)
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	for _, name := range n.opt.DemandColumns {
		rawCol, err := raw.Column(name)
		if err != nil {
			return nil, err
		}
		col := make([]float64, len(index))
		for i, ts := range index {
			if j, exists := rowAt[ts.Unix()]; exists && !math.IsNaN(rawCol[j]) {
				col[i] = rawCol[j]
			}
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	if err := checkComplete(out, len(index)); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *Normalizer) checkDemandSum(raw *frame.Frame) error {
	if n.opt.TotalColumn == "" || len(n.opt.ComponentColumns) == 0 {
		return nil
	}
	total, err := raw.Column(n.opt.TotalColumn)
	if err != nil {
		return err
	}
	components := make([][]float64, 0, len(n.opt.ComponentColumns))
	for _, name := range n.opt.ComponentColumns {
		col, err := raw.Column(name)
		if err != nil {
			return err
		}
		components = append(components, col)
	}

	t := raw.Times()
	for i := range total {
		sum := 0.0
		present := !math.IsNaN(total[i])
		for _, col := range components {
			if math.IsNaN(col[i]) {
				present = false
				break
			}
			sum += col[i]
		}
		if present && sum != total[i] {
			return fmt.Errorf(
				"timestamp %s has %s=%v but components sum to %v, %w",
				t[i], n.opt.TotalColumn, total[i], sum, ErrDemandMismatch,
			)
		}
	}
	return nil
}

// aggregateDays groups the raw rows on calendar date and takes the mean of
// each day column. The mean is a tolerant aggregator for attributes expected
// constant within a day; disagreement within a day is logged as a
// data-quality signal but otherwise preserved.
func (n *Normalizer) aggregateDays(raw *frame.Frame, t []time.Time) (map[int64]map[string]float64, error) {
	agg := make(map[int64]map[string]float64)
	counts := make(map[int64]int)

	cols := make(map[string][]float64, len(n.opt.DayColumns))
	for _, name := range n.opt.DayColumns {
		col, err := raw.Column(name)
		if err != nil {
			return nil, err
		}
		cols[name] = col
	}

	for i, ts := range t {
		day := dayKey(ts)
		if _, exists := agg[day]; !exists {
			agg[day] = make(map[string]float64, len(cols))
		}
		for name, col := range cols {
			agg[day][name] += col[i]
		}
		counts[day]++
	}
	for day, sums := range agg {
		for name := range sums {
			sums[name] /= float64(counts[day])
			if sums[name] != math.Trunc(sums[name]) {
				slog.Warn("day attribute disagrees within day",
					"date", time.Unix(day, 0).UTC().Format(time.DateOnly),
					"column", name,
					"mean", sums[name],
				)
			}
		}
	}
	return agg, nil
}

func (n *Normalizer) calendarValue(ts time.Time, name string) float64 {
	if n.opt.Calendar == nil {
		return math.NaN()
	}
	attrs := n.opt.Calendar.DayAttributes(ts)
	switch name {
	case "season":
		return attrs.Season
	case "holiday":
		return attrs.Holiday
	case "weekday":
		return attrs.Weekday
	case "workingday":
		return attrs.WorkingDay
	}
	return math.NaN()
}

// interpolate fills NaN entries of col by piecewise-linear interpolation
// over the timestamp axis. Values outside the observed range take the
// nearest observed value. A column with a single observation is held
// constant.
func interpolate(t []time.Time, col []float64) error {
	xs := make([]float64, 0, len(col))
	ys := make([]float64, 0, len(col))
	for i, v := range col {
		if !math.IsNaN(v) {
			xs = append(xs, float64(t[i].Unix()))
			ys = append(ys, v)
		}
	}
	switch len(xs) {
	case 0:
		return nil
	case len(col):
		return nil
	case 1:
		for i := range col {
			col[i] = ys[0]
		}
		return nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return err
	}
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = pl.Predict(float64(t[i].Unix()))
		}
	}
	return nil
}

func roundClamp(col []float64, lo, hi float64) {
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		v = math.Round(v)
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		col[i] = v
	}
}

func checkComplete(f *frame.Frame, rows int) error {
	if f.Len() != rows {
		return fmt.Errorf("%d rows instead of %d, %w", f.Len(), rows, ErrIncompleteNormalization)
	}
	t := f.Times()
	for _, name := range f.Columns() {
		col, err := f.Column(name)
		if err != nil {
			return err
		}
		for i, v := range col {
			if math.IsNaN(v) {
				return fmt.Errorf("column %q at %s, %w", name, t[i], ErrIncompleteNormalization)
			}
		}
	}
	return nil
}

func completeIndex(start, end time.Time, freq time.Duration) []time.Time {
	index := make([]time.Time, 0, int(end.Sub(start)/freq)+1)
	for ct := start; !ct.After(end); ct = ct.Add(freq) {
		index = append(index, ct)
	}
	return index
}

func dayKey(ts time.Time) int64 {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
