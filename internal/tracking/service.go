package tracking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Service owns the in-memory ledger: per-user entry sequences plus the user
// table, loaded from the Store at startup and written through after every
// mutation. All methods serialize on one mutex; the "last entry open"
// invariant is not safe under concurrent clock-ins for the same user.
type Service struct {
	mu        sync.Mutex
	store     Store
	users     map[int64]User
	entries   map[int64][]Entry
	defaultTZ string

	now func() time.Time
}

// NewService loads the persisted ledger and returns a ready service.
// defaultTZ is assigned to users at registration.
func NewService(ctx context.Context, store Store, defaultTZ string) (*Service, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if snap.Users == nil {
		snap.Users = map[int64]User{}
	}
	if snap.Entries == nil {
		snap.Entries = map[int64][]Entry{}
	}
	return &Service{
		store:     store,
		users:     snap.Users,
		entries:   snap.Entries,
		defaultTZ: defaultTZ,
		now:       time.Now,
	}, nil
}

// RegisterParams carries the resolved identity of a /start caller. ChatAdmin
// is true when the messaging collaborator resolved the caller as a group
// admin; in private chats the first registered user becomes admin.
type RegisterParams struct {
	ID        int64
	Name      string
	FullName  string
	Private   bool
	ChatAdmin bool
}

// Register creates the user on first interaction. Re-registering refreshes
// display names only; timezone, roles and the registration timestamp are
// never reset this way.
func (s *Service) Register(ctx context.Context, p RegisterParams) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[p.ID]; ok {
		u.Name = p.Name
		u.FullName = p.FullName
		s.users[p.ID] = u
		if err := s.store.SaveUser(ctx, u); err != nil {
			return User{}, false, fmt.Errorf("persist user: %w", err)
		}
		return u, false, nil
	}

	isAdmin := p.ChatAdmin || (p.Private && len(s.users) == 0)
	u := User{
		ID:           p.ID,
		Name:         p.Name,
		FullName:     p.FullName,
		Timezone:     s.defaultTZ,
		IsAdmin:      isAdmin,
		IsEmployee:   !isAdmin,
		RegisteredAt: s.now().UTC(),
	}
	s.users[p.ID] = u
	if err := s.store.SaveUser(ctx, u); err != nil {
		return User{}, false, fmt.Errorf("persist user: %w", err)
	}
	return u, true, nil
}

// User returns a registered user by id.
func (s *Service) User(id int64) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// ClockIn opens a new session for the user. Admins outside employee mode
// are exempt and cause no mutation.
func (s *Service) ClockIn(ctx context.Context, userID int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Entry{}, ErrUnregisteredUser
	}
	if u.IsAdmin && !u.IsEmployee {
		return Entry{}, ErrAdminExempt
	}
	if active, ok := s.activeEntry(userID); ok {
		return active, ErrAlreadyClockedIn
	}

	e := Entry{In: s.now().UTC()}
	s.entries[userID] = append(s.entries[userID], e)
	if err := s.store.AppendEntry(ctx, userID, e); err != nil {
		return Entry{}, fmt.Errorf("persist entry: %w", err)
	}
	return e, nil
}

// ClockOut closes the user's open session and returns the closed entry and
// its duration.
func (s *Service) ClockOut(ctx context.Context, userID int64) (Entry, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Entry{}, 0, ErrUnregisteredUser
	}
	if u.IsAdmin && !u.IsEmployee {
		return Entry{}, 0, ErrAdminExempt
	}
	seq := s.entries[userID]
	if len(seq) == 0 {
		return Entry{}, 0, ErrNoActiveSession
	}
	last := seq[len(seq)-1]
	if !last.Open() {
		return Entry{}, 0, ErrAlreadyClockedOut
	}

	out := s.now().UTC()
	last.Out = &out
	seq[len(seq)-1] = last
	if err := s.store.CloseEntry(ctx, userID, out); err != nil {
		return Entry{}, 0, fmt.Errorf("persist entry: %w", err)
	}
	return last, last.Duration(out), nil
}

// GetStatus reports the quick status view. The "today" window here is the
// process's UTC-midnight day, intentionally simpler than the
// timezone-correct boundary the report engine uses.
func (s *Service) GetStatus(userID int64) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return Status{}, ErrUnregisteredUser
	}
	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	seq := s.entries[userID]
	var st Status
	var todaySeconds float64
	for i, e := range seq {
		if e.In.Before(todayStart) {
			continue
		}
		if e.Open() && i != len(seq)-1 {
			continue
		}
		todaySeconds += e.Duration(now).Seconds()
	}
	st.TodayHours = todaySeconds / 3600

	if active, ok := s.activeEntry(userID); ok {
		st.ClockedIn = true
		st.Since = active.In
		st.Session = now.Sub(active.In)
	}
	return st, nil
}

// ToggleEmployeeMode flips the is_employee flag and reports the new value.
// Existing entries are never touched.
func (s *Service) ToggleEmployeeMode(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, ErrUnregisteredUser
	}
	u.IsEmployee = !u.IsEmployee
	s.users[userID] = u
	if err := s.store.SaveUser(ctx, u); err != nil {
		return false, fmt.Errorf("persist user: %w", err)
	}
	return u.IsEmployee, nil
}

// SetTimezone validates and stores a new IANA zone for the user.
func (s *Service) SetTimezone(ctx context.Context, userID int64, name string) error {
	if _, err := time.LoadLocation(name); err != nil || name == "" || name == "Local" {
		return fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUnregisteredUser
	}
	u.Timezone = name
	s.users[userID] = u
	if err := s.store.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

// ClearEntries wipes every time entry for every user. Users stay registered.
func (s *Service) ClearEntries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = map[int64][]Entry{}
	if err := s.store.ClearEntries(ctx); err != nil {
		return fmt.Errorf("persist clear: %w", err)
	}
	return nil
}

// IdleSessions returns every open session older than threshold. Each scan
// re-evaluates from scratch; repeated scans re-report the same session.
func (s *Service) IdleSessions(threshold time.Duration) []IdleSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var idle []IdleSession
	for _, id := range s.sortedUserIDs() {
		active, ok := s.activeEntry(id)
		if !ok {
			continue
		}
		elapsed := now.Sub(active.In)
		if elapsed <= threshold {
			continue
		}
		idle = append(idle, IdleSession{
			UserID:   id,
			In:       active.In,
			Elapsed:  elapsed,
			Timezone: s.users[id].Timezone,
		})
	}
	return idle
}

// Report renders the single-user report for the inclusive civil date range.
func (s *Service) Report(targetID int64, start, end time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[targetID]
	if !ok {
		return "", ErrNoMatchingUser
	}
	return BuildReport(u, s.entries[targetID], start, end, s.now().UTC()), nil
}

// TeamReport renders the per-employee aggregation over the range, bounds
// interpreted in the calling admin's zone.
func (s *Service) TeamReport(adminID int64, start, end time.Time) (string, []TeamStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, ok := s.users[adminID]
	if !ok {
		return "", nil, ErrUnregisteredUser
	}
	stats := AggregateTeam(admin, s.users, s.entries, start, end, s.now().UTC())
	return RenderTeamReport(stats, start, end), stats, nil
}

// activeEntry returns the user's open session. Callers hold s.mu.
func (s *Service) activeEntry(userID int64) (Entry, bool) {
	seq := s.entries[userID]
	if len(seq) == 0 {
		return Entry{}, false
	}
	last := seq[len(seq)-1]
	if !last.Open() {
		return Entry{}, false
	}
	return last, true
}

// sortedUserIDs gives a deterministic encounter order for scans and team
// aggregation. Callers hold s.mu.
func (s *Service) sortedUserIDs() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
