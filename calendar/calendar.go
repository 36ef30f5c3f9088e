// Package calendar derives the categorical day attributes of the demand
// dataset (season, holiday, weekday, working day) from a US business
// calendar. The normalizer uses it to fill day-level attributes for calendar
// days that have no raw rows at all.
package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// DayAttributes holds the day-level categorical attributes encoded the way
// the raw dataset encodes them: season 1-4 by calendar quarter, weekday 0-6
// starting on Sunday, holiday and working day as 0/1 flags.
type DayAttributes struct {
	Season     float64
	Holiday    float64
	Weekday    float64
	WorkingDay float64
}

type Calendar struct {
	cal *cal.BusinessCalendar
}

// NewUS returns a Calendar loaded with the standard US holiday set.
func NewUS() *Calendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(us.Holidays...)
	return &Calendar{cal: c}
}

// DayAttributes derives the attributes for the calendar day containing t.
func (c *Calendar) DayAttributes(t time.Time) DayAttributes {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	actual, observed, _ := c.cal.IsHoliday(day)
	holiday := 0.0
	if actual || observed {
		holiday = 1.0
	}

	weekday := float64(day.Weekday())

	working := 1.0
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		working = 0.0
	default:
		if holiday == 1.0 {
			working = 0.0
		}
	}

	return DayAttributes{
		Season:     Season(day),
		Holiday:    holiday,
		Weekday:    weekday,
		WorkingDay: working,
	}
}

// Season returns the dataset's quarter-based season code: 1 for Jan-Mar
// through 4 for Oct-Dec.
func Season(t time.Time) float64 {
	return float64((int(t.Month())-1)/3 + 1)
}
