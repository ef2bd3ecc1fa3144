package models

import "time"

// DateLayout is the calendar-day format used by DailyGoal.
const DateLayout = "2006-01-02"

// DefaultGoal is the number of entries to learn per day when none is set.
const DefaultGoal = 5

// DailyGoal tracks the entries learned on the current calendar day.
type DailyGoal struct {
	Date       string   `json:"date"`
	Goal       int      `json:"goal"`
	LearnedIDs []string `json:"learnedIds"`
}

// NewDailyGoal returns an empty goal record for the day of now.
func NewDailyGoal(goal int, now time.Time) DailyGoal {
	if goal <= 0 {
		goal = DefaultGoal
	}
	return DailyGoal{Date: now.Format(DateLayout), Goal: goal, LearnedIDs: []string{}}
}

// Rollover clears the learned set when the record belongs to another day.
// It reports whether anything changed.
func (d *DailyGoal) Rollover(now time.Time) bool {
	today := now.Format(DateLayout)
	changed := false
	if d.Goal <= 0 {
		d.Goal = DefaultGoal
		changed = true
	}
	if d.LearnedIDs == nil {
		d.LearnedIDs = []string{}
	}
	if d.Date != today {
		d.Date = today
		d.LearnedIDs = []string{}
		changed = true
	}
	return changed
}

// Has reports whether id was learned today.
func (d DailyGoal) Has(id string) bool {
	for _, v := range d.LearnedIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Add records ids as learned today and returns how many were new.
func (d *DailyGoal) Add(ids ...string) int {
	added := 0
	for _, id := range ids {
		if d.Has(id) {
			continue
		}
		d.LearnedIDs = append(d.LearnedIDs, id)
		added++
	}
	return added
}

// Reached reports whether the goal for today is met.
func (d DailyGoal) Reached() bool {
	return d.Goal > 0 && len(d.LearnedIDs) >= d.Goal
}

// Clone returns a copy with its own id slice.
func (d DailyGoal) Clone() DailyGoal {
	out := d
	out.LearnedIDs = append([]string{}, d.LearnedIDs...)
	return out
}
