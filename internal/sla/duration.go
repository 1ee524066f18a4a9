// Package sla measures elapsed time for SLA purposes, either as raw calendar
// time or as overlap with a configured working window.
package sla

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket labels a reporting age bucket.
type Bucket string

const (
	BucketUpTo14Days Bucket = "0-14d"
	Bucket15To30Days Bucket = "15-30d"
	BucketOver30Days Bucket = "30d+"
)

// BusinessHours describes the working window counted in business-hours mode.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Weekdays  []time.Weekday
	Location  *time.Location
}

// DefaultBusinessHours is 09:00-17:00, Monday to Saturday, UTC.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour: 9,
		EndHour:   17,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
		},
		Location: time.UTC,
	}
}

// Validate checks the window is usable.
func (b BusinessHours) Validate() error {
	if b.StartHour < 0 || b.EndHour > 24 || b.StartHour >= b.EndHour {
		return fmt.Errorf("invalid business window %02d:00-%02d:00", b.StartHour, b.EndHour)
	}
	if len(b.Weekdays) == 0 {
		return fmt.Errorf("business window has no working days")
	}
	return nil
}

// Calculator converts time spans into SLA-relevant hours.
type Calculator struct {
	window   BusinessHours
	working  [7]bool
	location *time.Location
}

// NewCalculator builds a calculator for the given window.
func NewCalculator(window BusinessHours) (*Calculator, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	c := &Calculator{window: window, location: window.Location}
	if c.location == nil {
		c.location = time.UTC
	}
	for _, day := range window.Weekdays {
		c.working[day] = true
	}
	return c, nil
}

// Window returns the configured working window.
func (c *Calculator) Window() BusinessHours {
	return c.window
}

// Calendar returns wall-clock hours between start and end, never negative.
func (c *Calculator) Calendar(start, end time.Time) float64 {
	if start.After(end) {
		return 0
	}
	return roundHours(decimal.NewFromFloat(end.Sub(start).Hours()))
}

// Business returns the hours of [start, end] that fall inside working days
// and working hours. Each day's overlap is rounded to two decimals.
func (c *Calculator) Business(start, end time.Time) float64 {
	if !start.Before(end) {
		return 0
	}
	start = start.In(c.location)
	end = end.In(c.location)

	total := decimal.Zero
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, c.location)
	for !day.After(end) {
		if c.working[day.Weekday()] {
			windowStart := time.Date(day.Year(), day.Month(), day.Day(), c.window.StartHour, 0, 0, 0, c.location)
			windowEnd := time.Date(day.Year(), day.Month(), day.Day(), c.window.EndHour, 0, 0, 0, c.location)
			from := later(start, windowStart)
			to := earlier(end, windowEnd)
			if to.After(from) {
				overlap := decimal.NewFromFloat(to.Sub(from).Hours()).Round(2)
				total = total.Add(overlap)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return roundHours(total)
}

// AgeBucket places the calendar age of [start, end] into a reporting bucket.
func (c *Calculator) AgeBucket(start, end time.Time) Bucket {
	days := int(c.Calendar(start, end) / 24)
	switch {
	case days <= 14:
		return BucketUpTo14Days
	case days <= 30:
		return Bucket15To30Days
	default:
		return BucketOver30Days
	}
}

// RoundHours rounds an hour value to two decimals.
func RoundHours(hours float64) float64 {
	return roundHours(decimal.NewFromFloat(hours))
}

func roundHours(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
