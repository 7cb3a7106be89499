package tracking

import (
	"strings"
	"testing"
	"time"
)

func closed(in time.Time, d time.Duration) Entry {
	out := in.Add(d)
	return Entry{In: in, Out: &out}
}

func lagosUser(id int64, name string) User {
	return User{ID: id, Name: name, FullName: name, Timezone: "Africa/Lagos", IsEmployee: true}
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestReportSingleDay(t *testing.T) {
	u := User{ID: 1, FullName: "Eve", Timezone: "America/New_York", IsEmployee: true}
	loc := mustLoc(t, "America/New_York")

	// 09:00 to 17:30 local on 2025-04-20.
	in := time.Date(2025, 4, 20, 9, 0, 0, 0, loc).UTC()
	entries := []Entry{closed(in, 8*time.Hour+30*time.Minute)}

	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	body := BuildReport(u, entries, day, day, time.Now().UTC())

	for _, want := range []string{"2025-04-20: 8.50 hours", "09:00:00 - 17:30:00: 8.50h", "Total hours: 8.50"} {
		if !strings.Contains(body, want) {
			t.Fatalf("report missing %q:\n%s", want, body)
		}
	}
}

func TestReportRangeIsInclusiveAtLocalMidnight(t *testing.T) {
	u := lagosUser(1, "Eve")
	loc := mustLoc(t, "Africa/Lagos")

	midnight := time.Date(2025, 4, 20, 0, 0, 0, 0, loc).UTC()
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	atMidnight := BuildReport(u, []Entry{closed(midnight, time.Hour)}, day, day, now)
	if strings.Contains(atMidnight, "No time entries") {
		t.Fatalf("entry at local midnight must be included:\n%s", atMidnight)
	}

	justBefore := BuildReport(u, []Entry{closed(midnight.Add(-time.Microsecond), time.Hour)}, day, day, now)
	if !strings.Contains(justBefore, "No time entries") {
		t.Fatalf("entry one microsecond before midnight must be excluded:\n%s", justBefore)
	}
}

func TestReportEndOfDayIsInclusive(t *testing.T) {
	u := lagosUser(1, "Eve")
	loc := mustLoc(t, "Africa/Lagos")
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	// Clock-in in the last second of the local day; clock-out lands on the
	// next day, which does not matter for range membership.
	in := time.Date(2025, 4, 20, 23, 59, 59, 0, loc).UTC()
	body := BuildReport(u, []Entry{closed(in, 2*time.Hour)}, day, day, time.Now().UTC())
	if strings.Contains(body, "No time entries") {
		t.Fatalf("entry starting inside the day must be included:\n%s", body)
	}
	if !strings.Contains(body, "2.00h") {
		t.Fatalf("full duration counts even when out_time is out of range:\n%s", body)
	}
}

func TestReportOpenEntryUsesNowAndActiveMarker(t *testing.T) {
	u := lagosUser(1, "Eve")
	now := time.Date(2025, 4, 20, 14, 0, 0, 0, time.UTC)
	entries := []Entry{{In: now.Add(-2 * time.Hour)}}

	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	body := BuildReport(u, entries, day, day, now)

	if !strings.Contains(body, activeMarker) {
		t.Fatalf("open entry must carry the active marker:\n%s", body)
	}
	if !strings.Contains(body, "Total hours: 2.00") {
		t.Fatalf("open entry duration must be now minus in_time:\n%s", body)
	}
}

func TestReportSkipsEarlierOpenEntries(t *testing.T) {
	u := lagosUser(1, "Eve")
	now := time.Date(2025, 4, 20, 14, 0, 0, 0, time.UTC)

	// A stale open entry followed by a closed one: only the closed entry
	// may appear.
	entries := []Entry{
		{In: now.Add(-5 * time.Hour)},
		closed(now.Add(-3*time.Hour), time.Hour),
	}
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	body := BuildReport(u, entries, day, day, now)

	if strings.Contains(body, activeMarker) {
		t.Fatalf("stale open entry must be skipped:\n%s", body)
	}
	if !strings.Contains(body, "Total hours: 1.00") {
		t.Fatalf("only the closed entry counts:\n%s", body)
	}
}

func TestReportGroupsByLocalDateAscending(t *testing.T) {
	u := lagosUser(1, "Eve")
	loc := mustLoc(t, "Africa/Lagos")
	now := time.Now().UTC()

	d1 := time.Date(2025, 4, 21, 9, 0, 0, 0, loc).UTC()
	d2 := time.Date(2025, 4, 22, 9, 0, 0, 0, loc).UTC()
	entries := []Entry{closed(d1, time.Hour), closed(d2, 2*time.Hour)}

	start := time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 22, 0, 0, 0, 0, time.UTC)
	body := BuildReport(u, entries, start, end, now)

	first := strings.Index(body, "2025-04-21")
	second := strings.Index(body, "2025-04-22")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("dates missing or out of order:\n%s", body)
	}
	if !strings.Contains(body, "Total hours: 3.00") {
		t.Fatalf("grand total wrong:\n%s", body)
	}
}

func TestReportNoEntriesBody(t *testing.T) {
	u := lagosUser(1, "Eve")
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	body := BuildReport(u, nil, day, day, time.Now().UTC())
	if !strings.Contains(body, "No time entries found for this period.") {
		t.Fatalf("empty range must use the no-entries body:\n%s", body)
	}
	if strings.Contains(body, "Total hours") {
		t.Fatalf("empty range must not render a zero total:\n%s", body)
	}
}

func TestAggregateTeam(t *testing.T) {
	admin := User{ID: 100, FullName: "Root", Timezone: "Africa/Lagos", IsAdmin: true}
	loc := mustLoc(t, "Africa/Lagos")
	now := time.Date(2025, 4, 20, 18, 0, 0, 0, time.UTC)
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	morning := time.Date(2025, 4, 20, 9, 0, 0, 0, loc).UTC()

	users := map[int64]User{
		100: admin,
		1:   {ID: 1, FullName: "Two Hours A", Timezone: "Africa/Lagos", IsEmployee: true},
		2:   {ID: 2, FullName: "Eight Hours", Timezone: "Africa/Lagos", IsEmployee: true},
		3:   {ID: 3, FullName: "Zero", Timezone: "Africa/Lagos", IsEmployee: true},
		4:   {ID: 4, FullName: "Two Hours B", Timezone: "Africa/Lagos", IsEmployee: true},
		5:   {ID: 5, FullName: "Not Employee", Timezone: "Africa/Lagos"},
	}
	entries := map[int64][]Entry{
		1: {closed(morning, 2 * time.Hour)},
		2: {closed(morning, 7 * time.Hour), {In: now.Add(-time.Hour)}}, // 7h closed + 1h open
		4: {closed(morning, 2 * time.Hour)},
		5: {closed(morning, 6 * time.Hour)},
	}

	stats := AggregateTeam(admin, users, entries, day, day, now)

	if len(stats) != 3 {
		t.Fatalf("stats = %d, want 3 (zero-hour and non-employee excluded)", len(stats))
	}
	if stats[0].UserID != 2 || stats[0].Hours != 8 {
		t.Fatalf("top = %+v, want user 2 with 8h", stats[0])
	}
	if !stats[0].Active {
		t.Fatal("user 2 has an open last entry, must be active")
	}
	// Tie between users 1 and 4 keeps ascending-id encounter order.
	if stats[1].UserID != 1 || stats[2].UserID != 4 {
		t.Fatalf("tie order = %d,%d, want 1,4", stats[1].UserID, stats[2].UserID)
	}
	if stats[0].Entries != 2 || stats[1].Entries != 1 {
		t.Fatalf("entry counts = %d,%d, want 2,1", stats[0].Entries, stats[1].Entries)
	}
}

func TestRenderTeamReport(t *testing.T) {
	day := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	empty := RenderTeamReport(nil, day, day)
	if !strings.Contains(empty, "No time entries found for this period.") {
		t.Fatalf("empty team report body:\n%s", empty)
	}

	body := RenderTeamReport([]TeamStat{
		{UserID: 2, Name: "Eve", Hours: 8, Entries: 2, Active: true},
		{UserID: 1, Name: "Bob", Hours: 2, Entries: 1},
	}, day, day)
	if !strings.Contains(body, "1. Eve: 8.00h") || !strings.Contains(body, "2. Bob: 2.00h") {
		t.Fatalf("team listing wrong:\n%s", body)
	}
	if !strings.Contains(body, "Total team hours: 10.00") {
		t.Fatalf("team total wrong:\n%s", body)
	}
}
