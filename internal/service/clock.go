package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"familydose/internal/models"
)

// WallClock is the household's local time
type WallClock struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewWallClock creates a wall clock in loc, or in the local zone when loc is nil
func NewWallClock(clock clockwork.Clock, loc *time.Location) WallClock {
	if loc == nil {
		loc = time.Local
	}
	return WallClock{clock: clock, loc: loc}
}

// Now returns the current local time
func (w WallClock) Now() time.Time {
	return w.clock.Now().In(w.loc)
}

// Today returns the current local date as YYYY-MM-DD
func (w WallClock) Today() string {
	return w.Now().Format(models.DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in the clock's zone
func (w WallClock) ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, date, w.loc)
}

// WeekStart returns the Monday of the week containing t
func WeekStart(t time.Time) time.Time {
	offset := models.WeekdayOf(t).Index()
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
