package honeybadger

import "time"

// Clock abstracts time for testability. The builder stamps each notice with
// clock.Now(), so tests can produce deterministic payloads.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
