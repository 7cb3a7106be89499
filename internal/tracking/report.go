package tracking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const activeMarker = "active"

// BuildReport renders the hour report for one user over an inclusive civil
// date range. Bounds are taken in the target user's zone; an entry belongs
// to the range when its clock-in instant falls inside it, wherever the
// clock-out lands. The open entry counts only when it is the last entry
// overall, with now as its implicit close; earlier open entries are stale
// data and are skipped.
func BuildReport(u User, entries []Entry, start, end, now time.Time) string {
	loc := u.Location()
	lo, hi := RangeBounds(start, end, loc)

	type line struct {
		in, out string
		hours   float64
	}
	byDate := map[string][]line{}
	var dates []string
	var totalSeconds float64

	for i, e := range entries {
		if e.In.Before(lo) || e.In.After(hi) {
			continue
		}
		l := line{in: e.In.In(loc).Format("15:04:05")}
		switch {
		case !e.Open():
			l.out = e.Out.In(loc).Format("15:04:05")
		case i == len(entries)-1:
			l.out = activeMarker
		default:
			continue
		}
		d := e.Duration(now)
		l.hours = d.Seconds() / 3600
		totalSeconds += d.Seconds()

		day := e.In.In(loc).Format("2006-01-02")
		if _, ok := byDate[day]; !ok {
			dates = append(dates, day)
		}
		byDate[day] = append(byDate[day], l)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s\n\n", FormatRange(start, end))

	if len(dates) == 0 {
		b.WriteString("No time entries found for this period.")
		return b.String()
	}

	// ISO date strings sort lexicographically in chronological order.
	sort.Strings(dates)
	for _, day := range dates {
		var dayTotal float64
		for _, l := range byDate[day] {
			dayTotal += l.hours
		}
		fmt.Fprintf(&b, "%s: %.2f hours\n", day, dayTotal)
		for i, l := range byDate[day] {
			fmt.Fprintf(&b, "  %d. %s - %s: %.2fh\n", i+1, l.in, l.out, l.hours)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total hours: %.2f", totalSeconds/3600)
	return b.String()
}

// TeamStat is one employee's aggregate over a report range.
type TeamStat struct {
	UserID  int64
	Name    string
	Hours   float64
	Entries int
	Active  bool
}

// AggregateTeam computes per-employee totals over the range, bounds taken
// in the calling admin's zone. Employees with zero seconds in range are
// dropped. The result is sorted by hours descending; ties keep the
// ascending-user-id encounter order.
func AggregateTeam(admin User, users map[int64]User, entries map[int64][]Entry, start, end, now time.Time) []TeamStat {
	lo, hi := RangeBounds(start, end, admin.Location())

	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var stats []TeamStat
	for _, id := range ids {
		u := users[id]
		if !u.IsEmployee {
			continue
		}
		seq := entries[id]
		var seconds float64
		var count int
		for i, e := range seq {
			if e.In.Before(lo) || e.In.After(hi) {
				continue
			}
			if e.Open() && i != len(seq)-1 {
				continue
			}
			seconds += e.Duration(now).Seconds()
			count++
		}
		if seconds <= 0 {
			continue
		}
		name := u.FullName
		if name == "" {
			name = u.Name
		}
		stats = append(stats, TeamStat{
			UserID:  id,
			Name:    name,
			Hours:   seconds / 3600,
			Entries: count,
			Active:  len(seq) > 0 && seq[len(seq)-1].Open(),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Hours > stats[j].Hours })
	return stats
}

// RenderTeamReport prints the full sorted team list with the grand total.
func RenderTeamReport(stats []TeamStat, start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team Time Report\nPeriod: %s\n\n", FormatRange(start, end))

	if len(stats) == 0 {
		b.WriteString("No time entries found for this period.")
		return b.String()
	}

	var total float64
	for i, st := range stats {
		marker := "⏸"
		if st.Active {
			marker = "✅"
		}
		fmt.Fprintf(&b, "%d. %s: %.2fh (%d entries) %s\n", i+1, st.Name, st.Hours, st.Entries, marker)
		total += st.Hours
	}
	fmt.Fprintf(&b, "\nTotal team hours: %.2f", total)
	return b.String()
}
