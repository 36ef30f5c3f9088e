package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayAttributes(t *testing.T) {
	c := NewUS()

	testData := map[string]struct {
		day      time.Time
		expected DayAttributes
	}{
		"new years day saturday": {
			day: time.Date(2011, 1, 1, 13, 0, 0, 0, time.UTC),
			expected: DayAttributes{
				Season:     1,
				Holiday:    1,
				Weekday:    6,
				WorkingDay: 0,
			},
		},
		"regular tuesday": {
			day: time.Date(2011, 1, 4, 0, 0, 0, 0, time.UTC),
			expected: DayAttributes{
				Season:     1,
				Holiday:    0,
				Weekday:    2,
				WorkingDay: 1,
			},
		},
		"independence day": {
			day: time.Date(2011, 7, 4, 8, 0, 0, 0, time.UTC),
			expected: DayAttributes{
				Season:     3,
				Holiday:    1,
				Weekday:    1,
				WorkingDay: 0,
			},
		},
		"summer sunday": {
			day: time.Date(2011, 6, 5, 0, 0, 0, 0, time.UTC),
			expected: DayAttributes{
				Season:     2,
				Holiday:    0,
				Weekday:    0,
				WorkingDay: 0,
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, c.DayAttributes(td.day))
		})
	}
}

func TestSeason(t *testing.T) {
	assert.Equal(t, 1.0, Season(time.Date(2011, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2.0, Season(time.Date(2011, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 4.0, Season(time.Date(2011, 12, 25, 0, 0, 0, 0, time.UTC)))
}
