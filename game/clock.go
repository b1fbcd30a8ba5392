package game

import "time"

// AlarmTolerance is how early a deadline may fire and still count as on time.
const AlarmTolerance = 500 * time.Millisecond

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func NewSystemClock() Clock {
	return systemClock{}
}

// Due reports whether a phase deadline has been reached at now, within
// AlarmTolerance. A zero deadline is never due.
func Due(deadline, now time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	return !now.Before(deadline.Add(-AlarmTolerance))
}

// DeadlineAfter is start+limit, or zero when the limit is disabled.
func DeadlineAfter(start time.Time, limit time.Duration) time.Time {
	if limit <= 0 || start.IsZero() {
		return time.Time{}
	}
	return start.Add(limit)
}
