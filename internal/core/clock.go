package core

import "time"

// Clock abstracts "now" so time-dependent rules (streaks, recurring triggers,
// recorded_at stamps) are testable with a fixed instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
