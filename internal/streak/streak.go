package streak

import (
	"sort"
	"time"
)

// milestones is the fixed ascending ladder of streak goals.
var milestones = []int{1, 3, 7, 10, 14, 21, 30, 50, 100}

// Current computes the current engagement streak from entry creation times.
// Entries are reduced to distinct calendar days in now's location. The streak
// counts consecutive days ending today or yesterday; anything older breaks it.
func Current(times []time.Time, now time.Time) int {
	if len(times) == 0 {
		return 0
	}

	days := distinctDays(times, now.Location())
	// Most recent first
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := dayOf(now)
	yesterday := today.AddDate(0, 0, -1)

	latest := days[0]
	if !latest.Equal(today) && !latest.Equal(yesterday) {
		return 0
	}

	streak := 1
	prev := latest
	for _, d := range days[1:] {
		if d.Equal(prev.AddDate(0, 0, -1)) {
			streak++
			prev = d
			continue
		}
		break
	}
	return streak
}

// NextMilestone returns the smallest milestone strictly greater than current,
// or the last milestone once current meets or exceeds them all.
func NextMilestone(current int) int {
	for _, m := range milestones {
		if m > current {
			return m
		}
	}
	return milestones[len(milestones)-1]
}

// distinctDays collapses timestamps to unique midnight-normalized days in loc.
func distinctDays(times []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]bool, len(times))
	var days []time.Time
	for _, t := range times {
		d := dayOf(t.In(loc))
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
