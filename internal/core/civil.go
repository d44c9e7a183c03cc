package core

import (
	"fmt"
	"time"
)

// DefaultZone is the civil calendar every budget window is computed in.
// Users enter dates and times in this zone; storage keeps UTC instants.
const DefaultZone = "Asia/Kolkata"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Resolver converts between civil date+time in one fixed named zone and
// absolute UTC instants, and computes the month and ISO-week windows all
// budget arithmetic uses. Every call site within a request must agree on
// what "current month" means, so the zone is fixed per process, never
// taken from the server's own locale.
type Resolver struct {
	loc *time.Location
}

func NewResolver(zone string) (*Resolver, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return &Resolver{loc: loc}, nil
}

// MustResolver is for tests and defaults where the zone name is known good.
func MustResolver(zone string) *Resolver {
	r, err := NewResolver(zone)
	if err != nil {
		panic(err)
	}
	return r
}

// Zone returns the resolver's zone name.
func (r *Resolver) Zone() string {
	return r.loc.String()
}

// ToInstant parses a civil date (YYYY-MM-DD) and time (HH:mm) as local
// to the fixed zone and returns the equivalent UTC instant.
func (r *Resolver) ToInstant(dateStr, timeStr string) (time.Time, error) {
	if _, err := time.Parse(dateLayout, dateStr); err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTemporalInput, dateStr)
	}
	if _, err := time.Parse(timeLayout, timeStr); err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidTemporalInput, timeStr)
	}
	t, err := time.ParseInLocation(dateLayout+" "+timeLayout, dateStr+" "+timeStr, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidTemporalInput, dateStr, timeStr)
	}
	return t.UTC(), nil
}

// Civil formats an instant back to the (date, time) strings a user in
// the fixed zone would have entered.
func (r *Resolver) Civil(at time.Time) (dateStr, timeStr string) {
	l := at.In(r.loc)
	return l.Format(dateLayout), l.Format(timeLayout)
}

// MonthWindow returns the half-open [startOfMonth, startOfNextMonth)
// window containing at, computed in the fixed zone, as UTC instants.
func (r *Resolver) MonthWindow(at time.Time) (start, end time.Time) {
	l := at.In(r.loc)
	s := time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, r.loc)
	return s.UTC(), s.AddDate(0, 1, 0).UTC()
}

// MonthWindowOf is MonthWindow for an explicit month (1-12) and year.
func (r *Resolver) MonthWindowOf(month, year int) (start, end time.Time) {
	s := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, r.loc)
	return s.UTC(), s.AddDate(0, 1, 0).UTC()
}

// ISOWeekWindow returns the Monday 00:00:00.000 through Sunday
// 23:59:59.999 window containing at (ISO week, Monday-first), in the
// fixed zone, as UTC instants. Both ends are inclusive.
func (r *Resolver) ISOWeekWindow(at time.Time) (start, end time.Time) {
	l := at.In(r.loc)
	// time.Weekday counts Sunday as 0; shift so Monday is 0.
	offset := (int(l.Weekday()) + 6) % 7
	day := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, r.loc)
	s := day.AddDate(0, 0, -offset)
	e := s.AddDate(0, 0, 7).Add(-time.Millisecond)
	return s.UTC(), e.UTC()
}

// Weekday returns the local weekday of an instant. Grouping by weekday
// must use local day boundaries or expenses near midnight get attributed
// to the wrong day.
func (r *Resolver) Weekday(at time.Time) time.Weekday {
	return at.In(r.loc).Weekday()
}

// MonthYear returns the local month (1-12) and year of an instant.
func (r *Resolver) MonthYear(at time.Time) (month, year int) {
	l := at.In(r.loc)
	return int(l.Month()), l.Year()
}
