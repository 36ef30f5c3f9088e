package backtest

import (
	"fmt"
	"time"

	"github.com/bikecast/bikecast/frame"
	"github.com/goccy/go-json"
)

// StartLayout is the date-time form record consumers expect for the start
// field.
const StartLayout = "2006-01-02 15:04:05"

// StartTime marshals as the space-separated date-time string of StartLayout.
type StartTime time.Time

func (st StartTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(st).Format(StartLayout))
}

func (st *StartTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(StartLayout, s)
	if err != nil {
		return err
	}
	*st = StartTime(t.UTC())
	return nil
}

func (st StartTime) Time() time.Time {
	return time.Time(st)
}

// Record is the externally consumed serialization unit, one per target
// entity. Covariates holds one sub-array per covariate, each aligned
// one-to-one with the record's covered timestamp range.
type Record struct {
	Start      StartTime   `json:"start"`
	Target     []float64   `json:"target"`
	Covariates [][]float64 `json:"covariates"`
}

// RecordSets bundles the three record variants of a backtest run, each in
// the Split's stable entity order.
type RecordSets struct {
	// Training reveals only the training window for targets and covariates.
	Training []Record
	// Full covers the complete history for both targets and covariates.
	Full []Record
	// Inference reveals the training-window targets but the full covariate
	// history: covariates are assumed knowable ahead of the forecast
	// horizon, targets are not.
	Inference []Record
}

// Records builds the three record variants for every entity of the split.
// Any length mismatch between a target sequence and a covariate sequence is
// an error; records are never truncated or padded into alignment.
func (s *Split) Records() (*RecordSets, error) {
	trainByEntity := groupDemand(s.Train)
	testByEntity := groupDemand(s.Test)
	startByEntity := groupStart(s.Train)

	trainCovs, err := covariateArrays(s.RelatedTrain)
	if err != nil {
		return nil, err
	}
	testCovs, err := covariateArrays(s.RelatedTest)
	if err != nil {
		return nil, err
	}

	sets := &RecordSets{
		Training:  make([]Record, 0, len(s.Entities)),
		Full:      make([]Record, 0, len(s.Entities)),
		Inference: make([]Record, 0, len(s.Entities)),
	}
	covNames := s.RelatedTrain.Columns()

	for _, entity := range s.Entities {
		trainTarget := trainByEntity[entity]
		testTarget := testByEntity[entity]
		start := StartTime(startByEntity[entity])

		fullTarget := make([]float64, 0, len(trainTarget)+len(testTarget))
		fullTarget = append(fullTarget, trainTarget...)
		fullTarget = append(fullTarget, testTarget...)

		trainSet := make([][]float64, 0, len(trainCovs))
		fullSet := make([][]float64, 0, len(trainCovs))
		for i := range trainCovs {
			if len(trainCovs[i]) != len(trainTarget) {
				return nil, fmt.Errorf(
					"entity %q covariate %q has %d training values for %d target values, %w",
					entity, covNames[i], len(trainCovs[i]), len(trainTarget), ErrAlignment,
				)
			}
			full := make([]float64, 0, len(fullTarget))
			full = append(full, trainCovs[i]...)
			full = append(full, testCovs[i]...)
			if len(full) != len(fullTarget) {
				return nil, fmt.Errorf(
					"entity %q covariate %q has %d values for %d target values, %w",
					entity, covNames[i], len(full), len(fullTarget), ErrAlignment,
				)
			}
			trainSet = append(trainSet, copyFloats(trainCovs[i]))
			fullSet = append(fullSet, full)
		}

		sets.Training = append(sets.Training, Record{
			Start:      start,
			Target:     copyFloats(trainTarget),
			Covariates: trainSet,
		})
		sets.Full = append(sets.Full, Record{
			Start:      start,
			Target:     fullTarget,
			Covariates: fullSet,
		})
		sets.Inference = append(sets.Inference, Record{
			Start:      start,
			Target:     copyFloats(trainTarget),
			Covariates: copyCovariates(fullSet),
		})
	}
	return sets, nil
}

func groupDemand(points []TargetPoint) map[string][]float64 {
	out := make(map[string][]float64)
	for _, p := range points {
		out[p.Entity] = append(out[p.Entity], p.Demand)
	}
	return out
}

func groupStart(points []TargetPoint) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, p := range points {
		if _, exists := out[p.Entity]; !exists {
			out[p.Entity] = p.T
		}
	}
	return out
}

func covariateArrays(f *frame.Frame) ([][]float64, error) {
	out := make([][]float64, 0, len(f.Columns()))
	for _, name := range f.Columns() {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

func copyFloats(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

func copyCovariates(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i := range src {
		out[i] = copyFloats(src[i])
	}
	return out
}
