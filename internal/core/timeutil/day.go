// Package timeutil holds the calendar reasoning the rest of the engine leans
// on: logical-day normalization, consecutive-day predicates, and the
// grace-period-aware notion of "today".
package timeutil

import "time"

// Clock abstracts time.Now so services can be tested against a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

const dayKeyLayout = "2006-01-02"

// DayResolver maps instants onto logical days. Grace shifts the day boundary
// past midnight: with Grace=3h, 01:30 still belongs to the previous day.
type DayResolver struct {
	Grace time.Duration
	Loc   *time.Location
}

func NewDayResolver(grace time.Duration) DayResolver {
	return DayResolver{Grace: grace, Loc: time.UTC}
}

func (d DayResolver) location() *time.Location {
	if d.Loc != nil {
		return d.Loc
	}
	return time.UTC
}

// DayOf returns the logical day t falls on, as midnight in the resolver's
// location.
func (d DayResolver) DayOf(t time.Time) time.Time {
	shifted := t.In(d.location()).Add(-d.Grace)
	y, m, day := shifted.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.location())
}

// DayKey is the canonical yyyy-mm-dd key for t's logical day.
func (d DayResolver) DayKey(t time.Time) string {
	return d.DayOf(t).Format(dayKeyLayout)
}

// SameDay reports whether two instants fall on the same logical day.
func (d DayResolver) SameDay(a, b time.Time) bool {
	return d.DayOf(a).Equal(d.DayOf(b))
}

// DaysBetween counts whole logical days from a to b. Negative when b is
// before a.
func (d DayResolver) DaysBetween(a, b time.Time) int {
	da, db := d.DayOf(a), d.DayOf(b)
	return int(db.Sub(da).Hours() / 24)
}

// IsConsecutive reports whether next falls exactly one logical day after prev.
func (d DayResolver) IsConsecutive(prev, next time.Time) bool {
	return d.DaysBetween(prev, next) == 1
}

// DayBounds returns the [start, end) instants of t's logical day, including
// the grace shift, so range queries line up with day membership.
func (d DayResolver) DayBounds(t time.Time) (time.Time, time.Time) {
	start := d.DayOf(t).Add(d.Grace)
	return start, start.Add(24 * time.Hour)
}

// StartOfWeek returns the logical Monday 00:00 of t's week.
func (d DayResolver) StartOfWeek(t time.Time) time.Time {
	day := d.DayOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns the first logical day of t's month.
func (d DayResolver) StartOfMonth(t time.Time) time.Time {
	day := d.DayOf(t)
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, d.location())
}
