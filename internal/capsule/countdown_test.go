package capsule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountdownTo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	open := now.Add(3*24*time.Hour + 4*time.Hour + 5*time.Minute + 6*time.Second + 900*time.Millisecond)

	c := CountdownTo(open, now)
	require.Equal(t, Countdown{Days: 3, Hours: 4, Minutes: 5, Seconds: 6}, c)
	require.Equal(t, "3d 04h 05m 06s", c.String())
	require.False(t, c.Zero())

	require.True(t, CountdownTo(now, now).Zero())
	require.True(t, CountdownTo(now.Add(-time.Hour), now).Zero())
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		open time.Time
		want int
	}{
		{"past", now.Add(-48 * time.Hour), 0},
		{"now", now, 0},
		{"one hour", now.Add(time.Hour), 1},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"just over a day", now.Add(24*time.Hour + time.Second), 2},
		{"ten days", now.Add(240 * time.Hour), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DaysLeft(tt.open, now))
		})
	}
}

func TestSealed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, Sealed(now.Add(time.Second), now))
	require.False(t, Sealed(now, now))
	require.False(t, Sealed(now.Add(-time.Second), now))
}

func TestParseShareStatus(t *testing.T) {
	require.Equal(t, ShareAccepted, ParseShareStatus(" Accepted "))
	require.True(t, ParseShareStatus("declined").Valid())
	require.False(t, ParseShareStatus("maybe").Valid())
	require.False(t, ShareStatus("").Valid())
}
