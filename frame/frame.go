// Package frame provides an ordered, column-oriented time table used as the
// working representation of the hourly demand dataset. A Frame stores a time
// index alongside named float64 columns of equal length. Missing values are
// represented as NaN.
package frame

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoRows          = errors.New("no rows in frame")
	ErrNonMonotonic    = errors.New("time index is not monotonically non-decreasing")
	ErrLenMismatch     = errors.New("column has a different length than the time index")
	ErrColumnExists    = errors.New("column already exists in frame")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrCannotInferFreq = errors.New("cannot infer frequency from time index")
)

// Frame is an ordered collection of rows keyed by timestamp. Columns keep
// their insertion order. The time index must be non-decreasing; equal
// adjacent timestamps are permitted so that duplicate detection can happen
// downstream with useful context.
type Frame struct {
	t     []time.Time
	order []string
	cols  map[string][]float64
}

// New returns a Frame over a copy of the provided time index.
func New(t []time.Time) (*Frame, error) {
	if len(t) == 0 {
		return nil, ErrNoRows
	}
	for i := 1; i < len(t); i++ {
		if t[i].Before(t[i-1]) {
			return nil, fmt.Errorf("timestamp %s at row %d precedes %s, %w", t[i], i, t[i-1], ErrNonMonotonic)
		}
	}
	tSeries := make([]time.Time, len(t))
	copy(tSeries, t)
	return &Frame{
		t:    tSeries,
		cols: make(map[string][]float64),
	}, nil
}

// AddColumn appends a named column, copying the provided values.
func (f *Frame) AddColumn(name string, vals []float64) error {
	if _, exists := f.cols[name]; exists {
		return fmt.Errorf("column %q, %w", name, ErrColumnExists)
	}
	if len(vals) != len(f.t) {
		return fmt.Errorf(
			"column %q has length of %d, but time index has a length of %d, %w",
			name, len(vals), len(f.t), ErrLenMismatch,
		)
	}
	col := make([]float64, len(vals))
	copy(col, vals)
	f.order = append(f.order, name)
	f.cols[name] = col
	return nil
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	col, exists := f.cols[name]
	if !exists {
		return nil, fmt.Errorf("column %q, %w", name, ErrUnknownColumn)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Times returns a copy of the time index.
func (f *Frame) Times() []time.Time {
	out := make([]time.Time, len(f.t))
	copy(out, f.t)
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.t)
}

// StartTime returns the first timestamp of the index, or the zero time for
// an empty Frame.
func (f *Frame) StartTime() time.Time {
	if len(f.t) == 0 {
		return time.Time{}
	}
	return f.t[0]
}

// EndTime returns the last timestamp of the index, or the zero time for an
// empty Frame.
func (f *Frame) EndTime() time.Time {
	if len(f.t) == 0 {
		return time.Time{}
	}
	return f.t[len(f.t)-1]
}

// Copy returns a deep copy sharing no memory with the receiver.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		t:     make([]time.Time, len(f.t)),
		order: make([]string, len(f.order)),
		cols:  make(map[string][]float64, len(f.cols)),
	}
	copy(out.t, f.t)
	copy(out.order, f.order)
	for name, col := range f.cols {
		c := make([]float64, len(col))
		copy(c, col)
		out.cols[name] = c
	}
	return out
}

// Select returns a new Frame over the same time index restricted to the
// named columns, in the order given.
func (f *Frame) Select(names []string) (*Frame, error) {
	out, err := New(f.t)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		col, exists := f.cols[name]
		if !exists {
			return nil, fmt.Errorf("column %q, %w", name, ErrUnknownColumn)
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Before returns the rows with timestamp strictly before cut. The returned
// Frame shares no memory with the receiver and may have zero rows.
func (f *Frame) Before(cut time.Time) *Frame {
	n := 0
	for n < len(f.t) && f.t[n].Before(cut) {
		n++
	}
	return f.rowRange(0, n)
}

// From returns the rows with timestamp at or after cut. The returned Frame
// shares no memory with the receiver and may have zero rows.
func (f *Frame) From(cut time.Time) *Frame {
	n := 0
	for n < len(f.t) && f.t[n].Before(cut) {
		n++
	}
	return f.rowRange(n, len(f.t))
}

func (f *Frame) rowRange(start, end int) *Frame {
	out := &Frame{
		t:     make([]time.Time, end-start),
		order: make([]string, len(f.order)),
		cols:  make(map[string][]float64, len(f.cols)),
	}
	copy(out.t, f.t[start:end])
	copy(out.order, f.order)
	for name, col := range f.cols {
		c := make([]float64, end-start)
		copy(c, col[start:end])
		out.cols[name] = c
	}
	return out
}

// EstimateFreq infers the sample frequency of the index as the most common
// delta between adjacent timestamps, preferring the smaller delta on ties.
// Zero deltas from duplicated timestamps are ignored.
func (f *Frame) EstimateFreq() (time.Duration, error) {
	if len(f.t) < 2 {
		return 0, ErrCannotInferFreq
	}
	counts := make(map[time.Duration]int, len(f.t)-1)
	var best time.Duration
	for i := 1; i < len(f.t); i++ {
		delta := f.t[i].Sub(f.t[i-1])
		if delta == 0 {
			continue
		}
		counts[delta]++
		if counts[delta] > counts[best] || (counts[delta] == counts[best] && delta < best) {
			best = delta
		}
	}
	if best == 0 {
		return 0, ErrCannotInferFreq
	}
	return best, nil
}
