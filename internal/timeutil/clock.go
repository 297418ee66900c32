package timeutil

import "time"

// Clock supplies the current moment as a floating datetime.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the local wall-clock time, second precision.
func (SystemClock) Now() time.Time {
	return Floating(time.Now()).Truncate(time.Second)
}

// FixedClock always returns the same moment.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed moment.
func (c FixedClock) Now() time.Time {
	return c.T
}
