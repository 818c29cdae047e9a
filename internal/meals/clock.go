package meals

import "time"

// clock maps instants to the user's fixed-offset local time. All users
// share one offset, configured by USER_TZ_OFFSET_HOURS.
type clock struct {
	offset time.Duration
	now    func() time.Time
}

// local returns t shifted into local wall time, labelled UTC.
func (c clock) local(t time.Time) time.Time {
	return t.UTC().Add(c.offset)
}

func (c clock) today() time.Time {
	l := c.local(c.now())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// dayBounds returns the UTC instants of the local day containing now.
func (c clock) dayBounds() (day time.Time, from time.Time, to time.Time) {
	day = c.today()
	from = day.Add(-c.offset)
	return day, from, from.Add(24 * time.Hour)
}

// monthBounds returns the UTC instants of the local month containing now and
// its number of days.
func (c clock) monthBounds() (month time.Time, from time.Time, to time.Time, days int) {
	l := c.local(c.now())
	month = time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := month.AddDate(0, 1, 0)
	days = int(next.Sub(month).Hours() / 24)
	return month, month.Add(-c.offset), next.Add(-c.offset), days
}

// fromLocal converts a local wall time to UTC.
func (c clock) fromLocal(wall time.Time) time.Time {
	return wall.Add(-c.offset)
}
