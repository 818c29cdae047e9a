package meals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(now time.Time, hours int) clock {
	return clock{offset: time.Duration(hours) * time.Hour, now: func() time.Time { return now }}
}

func TestDayBoundsCrossesUTCMidnight(t *testing.T) {
	c := fixedClock(time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC), 5)

	day, from, to := c.dayBounds()

	assert.Equal(t, "2026-10-16", day.Format("2006-01-02"))
	assert.Equal(t, time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC), to)
}

func TestMonthBounds(t *testing.T) {
	c := fixedClock(time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC), 5)

	month, from, to, days := c.monthBounds()

	assert.Equal(t, "2026-02", month.Format("2006-01"))
	assert.Equal(t, 28, days)
	assert.Equal(t, time.Date(2026, 1, 31, 19, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 2, 28, 19, 0, 0, 0, time.UTC), to)
}

func TestFromLocal(t *testing.T) {
	c := fixedClock(time.Now(), 5)
	wall := time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC), c.fromLocal(wall))
	assert.Equal(t, wall, c.local(c.fromLocal(wall)))
}
