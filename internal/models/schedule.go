package models

import (
	"fmt"
	"time"
)

// TimeOfDay is one of the three daily dosing buckets
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
)

// TimesOfDay lists the buckets in daily order
var TimesOfDay = []TimeOfDay{Morning, Afternoon, Evening}

// ParseTimeOfDay validates a bucket name
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch TimeOfDay(s) {
	case Morning, Afternoon, Evening:
		return TimeOfDay(s), nil
	}
	return "", fmt.Errorf("unknown time of day %q", s)
}

// Window returns the first and last wall-clock hour of the bucket, inclusive
func (t TimeOfDay) Window() (start, end int) {
	switch t {
	case Morning:
		return 6, 11
	case Afternoon:
		return 12, 17
	case Evening:
		return 18, 23
	}
	return -1, -1
}

// Index is the bucket's position in TimesOfDay, or -1
func (t TimeOfDay) Index() int {
	for i, tod := range TimesOfDay {
		if tod == t {
			return i
		}
	}
	return -1
}

// IsPast reports whether the bucket's window has fully elapsed at hour
func (t TimeOfDay) IsPast(hour int) bool {
	_, end := t.Window()
	return hour > end
}

// TimeOfDayAt maps a wall-clock hour to its bucket. Hours before 6 have none.
func TimeOfDayAt(hour int) (TimeOfDay, bool) {
	for _, tod := range TimesOfDay {
		start, end := tod.Window()
		if hour >= start && hour <= end {
			return tod, true
		}
	}
	return "", false
}

// Weekday is a day-of-week key in the weekly grid, Monday first
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

// Weekdays lists the grid rows in order
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday validates a day key
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range Weekdays {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day of week %q", s)
}

// WeekdayOf returns the grid day for t in t's location
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday starts on Sunday
	return Weekdays[(int(t.Weekday())+6)%7]
}

// Index is the day's row in the grid, or -1
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ScheduleEntry is one recurring (day, time) dose for a user and item
type ScheduleEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Connect   string    `json:"connect"`
	Day       Weekday   `json:"day_of_week"`
	Time      TimeOfDay `json:"time_of_day"`
	Dose      int       `json:"dose"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduleInput is one requested grid cell. Dose is optional.
type ScheduleInput struct {
	Day  Weekday   `json:"day_of_week"`
	Time TimeOfDay `json:"time_of_day"`
	Dose *int      `json:"dose,omitempty"`
}

// ScheduleGrid is the 7x3 weekly view of one user's schedule for one item.
// Rows follow Weekdays, columns follow TimesOfDay.
type ScheduleGrid struct {
	ItemID    string            `json:"item_id"`
	UserID    string            `json:"user_id"`
	Days      [7][3]bool        `json:"days"`
	Doses     [7][3]int         `json:"doses"`
	TimeDoses map[TimeOfDay]int `json:"time_doses"`
	Slot      *SlotAssignment   `json:"slot,omitempty"`
	Empty     bool              `json:"empty"`
}

// NewScheduleGrid builds a grid from stored entries
func NewScheduleGrid(itemID, userID string, entries []ScheduleEntry) *ScheduleGrid {
	g := &ScheduleGrid{
		ItemID:    itemID,
		UserID:    userID,
		TimeDoses: map[TimeOfDay]int{Morning: 0, Afternoon: 0, Evening: 0},
		Empty:     len(entries) == 0,
	}
	for _, e := range entries {
		d, t := e.Day.Index(), e.Time.Index()
		if d < 0 || t < 0 {
			continue
		}
		g.Days[d][t] = true
		g.Doses[d][t] = e.Dose
	}
	// The per-time figure is the first scheduled dose in week order.
	for t, tod := range TimesOfDay {
		for d := range Weekdays {
			if g.Days[d][t] {
				g.TimeDoses[tod] = g.Doses[d][t]
				break
			}
		}
	}
	return g
}

// ExpectedDose is what a user should take for an item right now
type ExpectedDose struct {
	ItemID   string    `json:"item_id"`
	UserID   string    `json:"user_id"`
	TimeSlot TimeOfDay `json:"time_slot,omitempty"`
	Dose     int       `json:"dose"`
	Next     *NextDose `json:"next_dose,omitempty"`
}

// NextDose is the next positive dose later today
type NextDose struct {
	TimeSlot TimeOfDay `json:"time_slot"`
	Dose     int       `json:"dose"`
}

// TodayDose is a scheduled dose for today joined with display names
type TodayDose struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	ItemID   string    `json:"item_id"`
	ItemName string    `json:"item_name"`
	Time     TimeOfDay `json:"time_of_day"`
	Dose     int       `json:"dose"`
	Slot     int       `json:"slot,omitempty"`
}

// KitSchedule is today's schedule for the owner of a daily kit, grouped by bucket
type KitSchedule struct {
	KitID  string                    `json:"kit_id"`
	UserID string                    `json:"user_id"`
	Date   string                    `json:"date"`
	Day    Weekday                   `json:"day_of_week"`
	ByTime map[TimeOfDay][]TodayDose `json:"by_time"`
}
