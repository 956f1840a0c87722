package models

import (
	"math"
	"time"
)

// DateLayout is the storage format for calendar dates
const DateLayout = "2006-01-02"

// DoseStatus is the derived state of a ledger entry
type DoseStatus string

const (
	StatusCompleted DoseStatus = "completed"
	StatusMissed    DoseStatus = "missed"
	StatusPartial   DoseStatus = "partial"
)

// StatusFor derives a ledger status from planned and observed doses
func StatusFor(scheduled, actual int) DoseStatus {
	switch {
	case actual <= 0:
		return StatusMissed
	case actual < scheduled:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// DoseHistoryEntry records an actual intake event
type DoseHistoryEntry struct {
	ID            string     `json:"id"`
	Connect       string     `json:"connect"`
	UserID        string     `json:"user_id"`
	ItemID        string     `json:"item_id"`
	DoseDate      string     `json:"dose_date"`
	Time          TimeOfDay  `json:"time_of_day"`
	ScheduledDose int        `json:"scheduled_dose"`
	ActualDose    int        `json:"actual_dose"`
	Status        DoseStatus `json:"status"`
	CompletedAt   time.Time  `json:"completed_at"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CompletionRate is completed/scheduled as a rounded percentage, 0 when nothing is scheduled
func CompletionRate(completed, scheduled int) int {
	if scheduled == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(scheduled) * 100))
}

// Tally counts ledger outcomes
type Tally struct {
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Partial   int `json:"partial"`
	Missed    int `json:"missed"`
}

// Add counts one entry with the given status
func (t *Tally) Add(s DoseStatus) {
	t.Scheduled++
	switch s {
	case StatusCompleted:
		t.Completed++
	case StatusPartial:
		t.Partial++
	case StatusMissed:
		t.Missed++
	}
}

// Progress is today's adherence for one user
type Progress struct {
	Tally
	CompletionRate int `json:"completion_rate"`
}

// DailyStats is one day inside a weekly report
type DailyStats struct {
	Date string `json:"date"`
	Tally
	CompletionRate int `json:"completion_rate"`
}

// WeeklyStats covers seven consecutive days starting at StartDate
type WeeklyStats struct {
	StartDate      string       `json:"start_date"`
	EndDate        string       `json:"end_date"`
	TotalScheduled int          `json:"total_scheduled"`
	TotalCompleted int          `json:"total_completed"`
	PartialDoses   int          `json:"partial_doses"`
	MissedDoses    int          `json:"missed_doses"`
	CompletionRate int          `json:"completion_rate"`
	Daily          []DailyStats `json:"daily"`
}

// FamilyStats is today's ledger summary across a household
type FamilyStats struct {
	Connect     string `json:"connect"`
	Date        string `json:"date"`
	MemberCount int    `json:"member_count"`
	Tally
	CompletionRate int `json:"completion_rate"`
}

// BucketStats is planned-versus-actual for one slice of today's schedule.
// Remaining excludes partial doses; Past marks a fully elapsed window.
type BucketStats struct {
	Tally
	Remaining      int  `json:"remaining"`
	CompletionRate int  `json:"completion_rate"`
	Past           bool `json:"past,omitempty"`
}

// Finish derives Remaining and CompletionRate from the tally
func (b *BucketStats) Finish() {
	b.Remaining = b.Scheduled - b.Completed - b.Partial - b.Missed
	b.CompletionRate = CompletionRate(b.Completed, b.Scheduled)
}

// MemberStats is one household member's share of today's schedule
type MemberStats struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	BucketStats
}

// DetailedFamilyStats breaks today's household schedule down by bucket and member
type DetailedFamilyStats struct {
	Connect     string                    `json:"connect"`
	Date        string                    `json:"date"`
	MemberCount int                       `json:"member_count"`
	Overall     BucketStats               `json:"overall"`
	ByTime      map[TimeOfDay]BucketStats `json:"by_time"`
	Members     []MemberStats             `json:"members"`
}

// CompletionStatus says which buckets of a date are done for one item
type CompletionStatus struct {
	ItemID    string `json:"item_id"`
	Date      string `json:"date"`
	Morning   bool   `json:"morning"`
	Afternoon bool   `json:"afternoon"`
	Evening   bool   `json:"evening"`
}

// Set marks the bucket completed
func (c *CompletionStatus) Set(t TimeOfDay) {
	switch t {
	case Morning:
		c.Morning = true
	case Afternoon:
		c.Afternoon = true
	case Evening:
		c.Evening = true
	}
}

// HistoryFilter narrows a ledger query. Empty fields are unbounded.
type HistoryFilter struct {
	ItemID string
	From   string
	To     string
}
