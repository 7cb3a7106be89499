package tracking

import "time"

// User is a registered chat user. Role flags are independent: an admin may
// also be tracked as an employee.
type User struct {
	ID           int64
	Name         string
	FullName     string
	Timezone     string
	IsAdmin      bool
	IsEmployee   bool
	RegisteredAt time.Time
}

// Location resolves the user's configured IANA zone. Registration always
// stores a valid zone, so a failure here means the tzdata set changed
// underneath us; fall back to UTC rather than erroring every read path.
func (u User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Entry is one clock-in/clock-out pair. A nil Out means the session is
// still open; only the last entry of a user's sequence may be open.
type Entry struct {
	In  time.Time
	Out *time.Time
}

// Open reports whether the session has not been clocked out yet.
func (e Entry) Open() bool { return e.Out == nil }

// Duration returns the worked span, using now as the implicit close time
// for an open entry.
func (e Entry) Duration(now time.Time) time.Duration {
	if e.Out != nil {
		return e.Out.Sub(e.In)
	}
	return now.Sub(e.In)
}

// Snapshot is the full in-memory ledger state, as loaded from and written
// to a Store.
type Snapshot struct {
	Users   map[int64]User
	Entries map[int64][]Entry
}

// Status describes a user's current clock state for the quick status view.
type Status struct {
	ClockedIn  bool
	Since      time.Time
	Session    time.Duration
	TodayHours float64
}

// IdleSession is an open session that exceeded the idle threshold.
type IdleSession struct {
	UserID   int64
	In       time.Time
	Elapsed  time.Duration
	Timezone string
}
