package capsule

import (
	"fmt"
	"time"
)

// Countdown is the time left until a capsule opens, split for display.
type Countdown struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// CountdownTo returns the time left from now until openAt, truncated to
// whole seconds. It is zero once the capsule is open.
func CountdownTo(openAt, now time.Time) Countdown {
	left := openAt.Sub(now)
	if left <= 0 {
		return Countdown{}
	}
	secs := int64(left / time.Second)
	return Countdown{
		Days:    int(secs / 86400),
		Hours:   int(secs % 86400 / 3600),
		Minutes: int(secs % 3600 / 60),
		Seconds: int(secs % 60),
	}
}

// Zero reports whether the countdown has run out.
func (c Countdown) Zero() bool {
	return c == Countdown{}
}

// String formats the countdown as "3d 04h 05m 06s".
func (c Countdown) String() string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", c.Days, c.Hours, c.Minutes, c.Seconds)
}

// DaysLeft counts started days until openAt, never below zero. A capsule
// opening in one hour has one day left.
func DaysLeft(openAt, now time.Time) int {
	left := openAt.Sub(now)
	if left <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((left + day - 1) / day)
}

// Sealed reports whether a capsule opening at openAt is still locked at now.
func Sealed(openAt, now time.Time) bool {
	return now.Before(openAt)
}
