// Package export reads the raw observation table and writes the pipeline's
// output artifacts: the normalized table as CSV, the long-format target and
// related tables as flat CSV, and the per-entity record sets as JSON Lines.
// All functions take explicit readers and writers; opening files and any
// upload glue belongs to the caller.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/bikecast/bikecast/backtest"
	"github.com/bikecast/bikecast/frame"
)

var (
	ErrNoHeader          = errors.New("csv input has no header row")
	ErrMissingTimeColumn = errors.New("time column not found in csv header")
)

// ReadRawCSV reads a raw observation table. The named time column is parsed
// with the provided layout and becomes the frame's time index; rows are
// sorted by timestamp. Empty cells become NaN. Columns holding non-numeric
// values (such as a redundant date string) are dropped.
func ReadRawCSV(r io.Reader, timeColumn, layout string) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv, %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	header := rows[0]
	rows = rows[1:]

	timeIdx := -1
	for i, name := range header {
		if name == timeColumn {
			timeIdx = i
		}
	}
	if timeIdx == -1 {
		return nil, fmt.Errorf("column %q, %w", timeColumn, ErrMissingTimeColumn)
	}

	t := make([]time.Time, 0, len(rows))
	for i, row := range rows {
		ts, err := time.Parse(layout, row[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d, %w", i+2, err)
		}
		t = append(t, ts.UTC())
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return t[order[i]].Before(t[order[j]]) })

	sortedT := make([]time.Time, len(t))
	for i, j := range order {
		sortedT[i] = t[j]
	}
	f, err := frame.New(sortedT)
	if err != nil {
		return nil, err
	}

	for colIdx, name := range header {
		if colIdx == timeIdx {
			continue
		}
		col := make([]float64, len(rows))
		numeric := true
		for i, j := range order {
			cell := rows[j][colIdx]
			if cell == "" {
				col[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric = false
				break
			}
			col[i] = v
		}
		if !numeric {
			continue
		}
		if err := f.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteCSV writes a frame as CSV with the time index in the first column.
func WriteCSV(w io.Writer, f *frame.Frame, timeColumn, layout string) error {
	cw := csv.NewWriter(w)

	names := f.Columns()
	header := append([]string{timeColumn}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}

	cols := make([][]float64, 0, len(names))
	for _, name := range names {
		col, err := f.Column(name)
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}

	row := make([]string, len(header))
	for i, ts := range f.Times() {
		row[0] = ts.Format(layout)
		for j := range cols {
			row[j+1] = strconv.FormatFloat(cols[j][i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLongCSV writes a long-format target table as the flat record schema:
// one row per (timestamp, entity) pair.
func WriteLongCSV(w io.Writer, points []backtest.TargetPoint, layout string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "customer_type", "demand"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			p.T.Format(layout),
			p.Entity,
			strconv.FormatFloat(p.Demand, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
