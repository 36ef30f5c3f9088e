package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/bikecast/bikecast/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFrame(t *testing.T, ts []time.Time, cols map[string][]float64, order []string) *frame.Frame {
	t.Helper()
	f, err := frame.New(ts)
	require.NoError(t, err)
	for _, name := range order {
		require.NoError(t, f.AddColumn(name, cols[name]))
	}
	return f
}

var rawOrder = []string{
	"season", "holiday", "weekday", "workingday",
	"weathersit", "temp", "atemp", "hum", "windspeed",
	"casual", "registered", "cnt",
}

func TestNormalizeFillsGap(t *testing.T) {
	// raw rows for 00:00 and 02:00, hour 01:00 missing
	ts := []time.Time{
		time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 2, 0, 0, 0, time.UTC),
	}
	raw := rawFrame(t, ts, map[string][]float64{
		"season":     {1, 1},
		"holiday":    {0, 0},
		"weekday":    {1, 1},
		"workingday": {1, 1},
		"weathersit": {1, 2},
		"temp":       {0.2, 0.3},
		"atemp":      {0.25, 0.35},
		"hum":        {0.8, 0.6},
		"windspeed":  {0.0, 0.2},
		"casual":     {2, 4},
		"registered": {3, 5},
		"cnt":        {5, 9},
	}, rawOrder)

	out, err := New(nil).Normalize(raw)
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, []time.Time{
		time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 1, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 2, 0, 0, 0, time.UTC),
	}, out.Times())

	expected := map[string][]float64{
		"cnt":        {5, 0, 9},
		"casual":     {2, 0, 4},
		"registered": {3, 0, 5},
		"temp":       {0.2, 0.25, 0.3},
		"atemp":      {0.25, 0.3, 0.35},
		"hum":        {0.8, 0.7, 0.6},
		"windspeed":  {0.0, 0.1, 0.2},
		"weathersit": {1, 2, 2}, // midpoint 1.5 rounds up to code 2
		"season":     {1, 1, 1},
		"holiday":    {0, 0, 0},
		"weekday":    {1, 1, 1},
		"workingday": {1, 1, 1},
	}
	for name, want := range expected {
		col, err := out.Column(name)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, col, 1e-9, "column %s", name)
	}
}

func TestNormalizeInfersFreq(t *testing.T) {
	// half-hourly raw rows with one missing sample; no frequency configured
	ts := []time.Time{
		time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 0, 30, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 1, 30, 0, 0, time.UTC),
	}
	n := len(ts)
	cols := make(map[string][]float64, len(rawOrder))
	for _, c := range rawOrder {
		cols[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["season"][i] = 1
		cols["weekday"][i] = 1
		cols["workingday"][i] = 1
		cols["weathersit"][i] = 1
		cols["casual"][i] = 1
		cols["registered"][i] = 2
		cols["cnt"][i] = 3
	}
	raw := rawFrame(t, ts, cols, rawOrder)

	opt := NewDefaultOptions()
	opt.Freq = 0
	out, err := New(opt).Normalize(raw)
	require.NoError(t, err)

	require.Equal(t, 4, out.Len())
	assert.Equal(t, []time.Time{
		time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 0, 30, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 1, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 1, 30, 0, 0, time.UTC),
	}, out.Times())

	cnt, err := out.Column("cnt")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 0, 3}, cnt)
}

func TestNormalizeErrors(t *testing.T) {
	base := time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC)

	testData := map[string]struct {
		ts  []time.Time
		mod func(map[string][]float64)
		err error
	}{
		"single row": {
			ts:  []time.Time{base},
			err: ErrInsufficientData,
		},
		"duplicate timestamp": {
			ts:  []time.Time{base, base, base.Add(time.Hour)},
			err: ErrDuplicateTimestamp,
		},
		"off grid timestamp": {
			ts:  []time.Time{base, base.Add(30 * time.Minute), base.Add(time.Hour)},
			err: ErrOffGridTimestamp,
		},
		"demand sum mismatch": {
			ts: []time.Time{base, base.Add(time.Hour)},
			mod: func(cols map[string][]float64) {
				cols["cnt"][1] = 100
			},
			err: ErrDemandMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			n := len(td.ts)
			cols := make(map[string][]float64, len(rawOrder))
			for _, c := range rawOrder {
				cols[c] = make([]float64, n)
			}
			for i := 0; i < n; i++ {
				cols["season"][i] = 1
				cols["weathersit"][i] = 1
				cols["casual"][i] = 1
				cols["registered"][i] = 2
				cols["cnt"][i] = 3
			}
			if td.mod != nil {
				td.mod(cols)
			}
			raw := rawFrame(t, td.ts, cols, rawOrder)

			_, err := New(nil).Normalize(raw)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	ts := make([]time.Time, 48)
	for i := range ts {
		ts[i] = time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	}
	n := len(ts)
	cols := make(map[string][]float64, len(rawOrder))
	for _, c := range rawOrder {
		cols[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["season"][i] = 1
		cols["weekday"][i] = float64(ts[i].Weekday())
		cols["workingday"][i] = 1
		if ts[i].Weekday() == time.Saturday || ts[i].Weekday() == time.Sunday {
			cols["workingday"][i] = 0
		}
		cols["weathersit"][i] = float64(i%3 + 1)
		cols["temp"][i] = 0.2 + 0.01*float64(i%10)
		cols["atemp"][i] = 0.25 + 0.01*float64(i%10)
		cols["hum"][i] = 0.6
		cols["windspeed"][i] = 0.1
		cols["casual"][i] = float64(i % 7)
		cols["registered"][i] = float64(i % 11)
		cols["cnt"][i] = cols["casual"][i] + cols["registered"][i]
	}
	raw := rawFrame(t, ts, cols, rawOrder)

	out, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, n, out.Len())
	assert.Equal(t, ts, out.Times())
	for _, name := range rawOrder {
		col, err := out.Column(name)
		require.NoError(t, err)
		assert.Equal(t, cols[name], col, "column %s", name)
	}

	// a second pass over an already-complete table changes nothing
	again, err := New(nil).Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestNormalizeMissingDayUsesCalendar(t *testing.T) {
	// 2011-01-04 (a regular Tuesday) has no raw rows at all; its day
	// attributes come from the business calendar.
	ts := []time.Time{
		time.Date(2011, 1, 3, 22, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 3, 23, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 5, 1, 0, 0, 0, time.UTC),
	}
	n := len(ts)
	cols := make(map[string][]float64, len(rawOrder))
	for _, c := range rawOrder {
		cols[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["season"][i] = 1
		cols["weekday"][i] = float64(ts[i].Weekday())
		cols["workingday"][i] = 1
		cols["weathersit"][i] = 1
		cols["temp"][i] = 0.2
		cols["casual"][i] = 1
		cols["registered"][i] = 1
		cols["cnt"][i] = 2
	}
	raw := rawFrame(t, ts, cols, rawOrder)

	out, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, 28, out.Len())

	weekday, err := out.Column("weekday")
	require.NoError(t, err)
	workingday, err := out.Column("workingday")
	require.NoError(t, err)

	target := time.Date(2011, 1, 4, 2, 0, 0, 0, time.UTC)
	idx := -1
	for i, tt := range out.Times() {
		if tt.Equal(target) {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	assert.Equal(t, 2.0, weekday[idx])
	assert.Equal(t, 1.0, workingday[idx])
}

func TestNormalizeNoCalendarFallbackFailsPostcondition(t *testing.T) {
	ts := []time.Time{
		time.Date(2011, 1, 3, 23, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 5, 1, 0, 0, 0, time.UTC),
	}
	n := len(ts)
	cols := make(map[string][]float64, len(rawOrder))
	for _, c := range rawOrder {
		cols[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["weathersit"][i] = 1
		cols["casual"][i] = 1
		cols["registered"][i] = 1
		cols["cnt"][i] = 2
	}
	raw := rawFrame(t, ts, cols, rawOrder)

	opt := NewDefaultOptions()
	opt.Calendar = nil
	_, err := New(opt).Normalize(raw)
	assert.ErrorIs(t, err, ErrIncompleteNormalization)
}

func TestInterpolate(t *testing.T) {
	base := time.Date(2011, 1, 3, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(3 * time.Hour)}

	testData := map[string]struct {
		col      []float64
		expected []float64
	}{
		"interior gap": {
			col:      []float64{1, math.NaN(), math.NaN(), 4},
			expected: []float64{1, 2, 3, 4},
		},
		"trailing gap takes last value": {
			col:      []float64{1, 2, math.NaN(), math.NaN()},
			expected: []float64{1, 2, 2, 2},
		},
		"single observation held constant": {
			col:      []float64{math.NaN(), 3, math.NaN(), math.NaN()},
			expected: []float64{3, 3, 3, 3},
		},
		"complete column untouched": {
			col:      []float64{1, 2, 3, 4},
			expected: []float64{1, 2, 3, 4},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			col := make([]float64, len(td.col))
			copy(col, td.col)
			require.NoError(t, interpolate(ts, col))
			assert.InDeltaSlice(t, td.expected, col, 1e-9)
		})
	}
}

func TestRoundClamp(t *testing.T) {
	col := []float64{0.2, 1.4, 1.5, 3.7, 5.2}
	roundClamp(col, 1, 4)
	assert.Equal(t, []float64{1, 1, 2, 4, 4}, col)
}
