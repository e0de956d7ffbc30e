// Package streak tracks consecutive-day workout streaks.
//
// A streak record holds the current and longest streak, the calendar day
// of the last workout and the total workout count. A completion moves the
// record according to the whole-day gap since the last workout:
//
//	no record  bootstrap at 1/1/1 and unlock first_workout
//	gap <= 0   unchanged, no achievement check
//	gap == 1   currentStreak + 1
//	gap > 1    currentStreak resets to 1
//
// Every change also bumps totalWorkouts and keeps longestStreak at
// max(longestStreak, currentStreak). The record write and any achievement
// inserts run in one saga so a failed unlock restores the record.
//
// Reads and writes of one user's record are not serialized across calls;
// concurrent completions for the same user are last-writer-wins.
package streak

import (
	"fmt"
	"time"
)

// Record is one user's streak document.
type Record struct {
	ID              string `json:"-"`
	UserID          string `json:"userId"`
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
	LastWorkoutDate string `json:"lastWorkoutDate"`
	TotalWorkouts   int    `json:"totalWorkouts"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

// DayGap returns the number of calendar days from last to next, both
// formatted YYYY-MM-DD. The result is negative when next is earlier.
func DayGap(last, next string) (int, error) {
	l, err := time.Parse(time.DateOnly, last)
	if err != nil {
		return 0, fmt.Errorf("parse last workout date: %w", err)
	}
	n, err := time.Parse(time.DateOnly, next)
	if err != nil {
		return 0, fmt.Errorf("parse workout date: %w", err)
	}
	return int(n.Sub(l).Hours() / 24), nil
}

// Advance applies a completion on day, gap days after r.LastWorkoutDate.
// It reports false, and returns r unchanged, when gap <= 0.
func Advance(r Record, gap int, day string) (Record, bool) {
	if gap <= 0 {
		return r, false
	}
	if gap == 1 {
		r.CurrentStreak++
	} else {
		r.CurrentStreak = 1
	}
	r.LongestStreak = max(r.LongestStreak, r.CurrentStreak)
	r.TotalWorkouts++
	r.LastWorkoutDate = day
	return r, true
}
