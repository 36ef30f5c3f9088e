// Package backtest partitions the normalized demand table at a cutoff
// timestamp and formats per-entity forecast records. Each demand counter
// column becomes a target entity owning its own series; the weather and day
// attribute columns form a single related series set shared by all entities.
package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bikecast/bikecast/frame"
)

var (
	ErrEmptySplit     = errors.New("cutoff produces an empty train or test partition")
	ErrSchemaMismatch = errors.New("entity set does not match the configured target columns")
	ErrAlignment      = errors.New("covariate length does not align with target length")
)

// TargetPoint is one row of the long-format target table produced by
// unpivoting the wide demand columns.
type TargetPoint struct {
	T      time.Time
	Entity string
	Demand float64
}

type Options struct {
	// Cutoff separates training history (timestamp < cutoff) from the
	// held-out test window (timestamp >= cutoff).
	Cutoff time.Time

	// TargetColumns are the demand counters treated as independent target
	// entities. The derived total counter must not be listed here.
	TargetColumns []string

	// CovariateColumns form the related series set shared by all entities.
	CovariateColumns []string
}

// Splitter implements the backtest split and record formatting stage.
type Splitter struct {
	opt *Options
}

// New creates a Splitter using the provided options.
func New(opt *Options) (*Splitter, error) {
	if opt == nil || opt.Cutoff.IsZero() {
		return nil, errors.New("no cutoff configured")
	}
	if len(opt.TargetColumns) == 0 {
		return nil, errors.New("no target columns configured")
	}
	return &Splitter{opt: opt}, nil
}

// Split is the chronological partition of the unpivoted target table and the
// shared related series set at the cutoff.
type Split struct {
	// Entities is the stable per-entity order, keyed by first appearance in
	// the unpivoted target table. Record sets and downstream prediction
	// reads both follow this order.
	Entities []string

	Train []TargetPoint
	Test  []TargetPoint

	RelatedTrain *frame.Frame
	RelatedTest  *frame.Frame
}

// Split unpivots the normalized table into the long target table, partitions
// it at the cutoff, and partitions the related series identically. An empty
// train or test partition is an error, never silently accepted.
func (s *Splitter) Split(normalized *frame.Frame) (*Split, error) {
	long, err := Unpivot(normalized, s.opt.TargetColumns)
	if err != nil {
		return nil, err
	}

	entities := Entities(long)
	if err := matchEntitySet(entities, s.opt.TargetColumns); err != nil {
		return nil, err
	}

	cutoff := s.opt.Cutoff
	var train, test []TargetPoint
	for _, p := range long {
		if p.T.Before(cutoff) {
			train = append(train, p)
		} else {
			test = append(test, p)
		}
	}
	if len(train) == 0 {
		return nil, fmt.Errorf(
			"cutoff %s at or before first timestamp %s, %w",
			cutoff, normalized.StartTime(), ErrEmptySplit,
		)
	}
	if len(test) == 0 {
		return nil, fmt.Errorf(
			"cutoff %s after last timestamp %s, %w",
			cutoff, normalized.EndTime(), ErrEmptySplit,
		)
	}

	related, err := normalized.Select(s.opt.CovariateColumns)
	if err != nil {
		return nil, err
	}

	return &Split{
		Entities:     entities,
		Train:        train,
		Test:         test,
		RelatedTrain: related.Before(cutoff),
		RelatedTest:  related.From(cutoff),
	}, nil
}

// Unpivot reshapes the wide table into the long target table with one row
// per (timestamp, entity) pair, ordered by timestamp then entity name.
func Unpivot(f *frame.Frame, targetCols []string) ([]TargetPoint, error) {
	cols := make([][]float64, 0, len(targetCols))
	names := make([]string, len(targetCols))
	copy(names, targetCols)
	sort.Strings(names)
	for _, name := range names {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	t := f.Times()
	long := make([]TargetPoint, 0, len(t)*len(names))
	for i, ts := range t {
		for j, name := range names {
			long = append(long, TargetPoint{
				T:      ts,
				Entity: name,
				Demand: cols[j][i],
			})
		}
	}
	return long, nil
}

// Pivot rebuilds a wide table from a long target table, grouping by entity
// and re-sorting by timestamp. It is the inverse of Unpivot.
func Pivot(long []TargetPoint) (*frame.Frame, error) {
	entities := Entities(long)
	byEntity := make(map[string][]TargetPoint, len(entities))
	for _, p := range long {
		byEntity[p.Entity] = append(byEntity[p.Entity], p)
	}

	var f *frame.Frame
	for _, entity := range entities {
		points := byEntity[entity]
		sort.SliceStable(points, func(i, j int) bool { return points[i].T.Before(points[j].T) })

		if f == nil {
			t := make([]time.Time, 0, len(points))
			for _, p := range points {
				t = append(t, p.T)
			}
			var err error
			if f, err = frame.New(t); err != nil {
				return nil, err
			}
		}
		if len(points) != f.Len() {
			return nil, fmt.Errorf(
				"entity %q has %d rows instead of %d, %w",
				entity, len(points), f.Len(), ErrAlignment,
			)
		}

		col := make([]float64, 0, len(points))
		for _, p := range points {
			col = append(col, p.Demand)
		}
		if err := f.AddColumn(entity, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Entities returns the distinct entities of a long target table in
// first-seen order.
func Entities(long []TargetPoint) []string {
	seen := make(map[string]struct{})
	var entities []string
	for _, p := range long {
		if _, exists := seen[p.Entity]; exists {
			continue
		}
		seen[p.Entity] = struct{}{}
		entities = append(entities, p.Entity)
	}
	return entities
}

func matchEntitySet(entities, targetCols []string) error {
	if len(entities) != len(targetCols) {
		return fmt.Errorf(
			"%d entities from %d target columns, %w",
			len(entities), len(targetCols), ErrSchemaMismatch,
		)
	}
	expected := make(map[string]struct{}, len(targetCols))
	for _, name := range targetCols {
		expected[name] = struct{}{}
	}
	for _, entity := range entities {
		if _, exists := expected[entity]; !exists {
			return fmt.Errorf("unexpected entity %q, %w", entity, ErrSchemaMismatch)
		}
	}
	return nil
}
