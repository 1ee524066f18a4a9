package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdaysOnly() BusinessHours {
	return BusinessHours{
		StartHour: 9,
		EndHour:   17,
		Weekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Location:  time.UTC,
	}
}

func mustCalculator(t *testing.T, window BusinessHours) *Calculator {
	t.Helper()
	calc, err := NewCalculator(window)
	require.NoError(t, err)
	return calc
}

func at(day, hour, minute int) time.Time {
	// January 2024: the 1st is a Monday.
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestCalculator_ReversedSpanIsZero(t *testing.T) {
	calc := mustCalculator(t, DefaultBusinessHours())

	assert.Zero(t, calc.Calendar(at(5, 12, 0), at(5, 10, 0)))
	assert.Zero(t, calc.Business(at(8, 12, 0), at(5, 10, 0)))
	assert.Zero(t, calc.Business(at(5, 10, 0), at(5, 10, 0)))
}

func TestCalculator_CalendarHours(t *testing.T) {
	calc := mustCalculator(t, DefaultBusinessHours())

	assert.Equal(t, 66.0, calc.Calendar(at(5, 16, 0), at(8, 10, 0)))
	assert.Equal(t, 0.33, calc.Calendar(at(5, 16, 0), at(5, 16, 20)))
}

func TestCalculator_BusinessHoursSkipsWeekend(t *testing.T) {
	calc := mustCalculator(t, weekdaysOnly())

	// Friday 16:00 to Monday 10:00: one hour each side of the weekend.
	assert.Equal(t, 2.0, calc.Business(at(5, 16, 0), at(8, 10, 0)))
}

func TestCalculator_BusinessHoursCountsWorkingSaturday(t *testing.T) {
	calc := mustCalculator(t, DefaultBusinessHours())

	// Monday-Saturday window: Friday 1h + Saturday 8h + Monday 1h.
	assert.Equal(t, 10.0, calc.Business(at(5, 16, 0), at(8, 10, 0)))
}

func TestCalculator_BusinessHoursSameDay(t *testing.T) {
	calc := mustCalculator(t, weekdaysOnly())

	tests := []struct {
		name       string
		start, end time.Time
		want       float64
	}{
		{name: "inside window", start: at(3, 10, 0), end: at(3, 12, 30), want: 2.5},
		{name: "starts before window", start: at(3, 6, 0), end: at(3, 10, 0), want: 1},
		{name: "ends after window", start: at(3, 16, 0), end: at(3, 22, 0), want: 1},
		{name: "entirely after hours", start: at(3, 18, 0), end: at(3, 23, 0), want: 0},
		{name: "sunday", start: at(7, 9, 0), end: at(7, 17, 0), want: 0},
		{name: "partial minutes", start: at(3, 9, 0), end: at(3, 9, 20), want: 0.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.Business(tt.start, tt.end))
		})
	}
}

func TestCalculator_BusinessHoursAcrossWeeks(t *testing.T) {
	calc := mustCalculator(t, weekdaysOnly())

	// Monday 09:00 to the following Monday 09:00: five full working days.
	assert.Equal(t, 40.0, calc.Business(at(1, 9, 0), at(8, 9, 0)))
}

func TestCalculator_BusinessHoursUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	window := weekdaysOnly()
	window.Location = loc
	calc := mustCalculator(t, window)

	// 03:30 UTC is 09:00 IST, 07:30 UTC is 13:00 IST.
	assert.Equal(t, 4.0, calc.Business(at(3, 3, 30), at(3, 7, 30)))
}

func TestCalculator_AgeBucket(t *testing.T) {
	calc := mustCalculator(t, DefaultBusinessHours())
	start := at(1, 0, 0)

	assert.Equal(t, BucketUpTo14Days, calc.AgeBucket(start, start.AddDate(0, 0, 14)))
	assert.Equal(t, Bucket15To30Days, calc.AgeBucket(start, start.AddDate(0, 0, 15)))
	assert.Equal(t, Bucket15To30Days, calc.AgeBucket(start, start.AddDate(0, 0, 30)))
	assert.Equal(t, BucketOver30Days, calc.AgeBucket(start, start.AddDate(0, 0, 31)))
}

func TestNewCalculator_RejectsBadWindow(t *testing.T) {
	_, err := NewCalculator(BusinessHours{StartHour: 17, EndHour: 9, Weekdays: []time.Weekday{time.Monday}})
	assert.Error(t, err)

	_, err = NewCalculator(BusinessHours{StartHour: 9, EndHour: 17})
	assert.Error(t, err)
}
