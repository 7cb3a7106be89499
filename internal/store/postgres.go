package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"timeclock/internal/tracking"
)

// PostgresStore persists the ledger in Postgres. Entry order is insertion
// order (serial primary key), matching the append-only ledger discipline.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads the full user and entry tables.
func (s *PostgresStore) Load(ctx context.Context) (tracking.Snapshot, error) {
	snap := tracking.Snapshot{
		Users:   map[int64]tracking.User{},
		Entries: map[int64][]tracking.Entry{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, full_name, timezone, is_admin, registered_date, is_employee
		FROM clock_users
	`)
	if err != nil {
		return tracking.Snapshot{}, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u tracking.User
		if err := rows.Scan(&u.ID, &u.Name, &u.FullName, &u.Timezone, &u.IsAdmin, &u.RegisteredAt, &u.IsEmployee); err != nil {
			return tracking.Snapshot{}, err
		}
		u.RegisteredAt = u.RegisteredAt.UTC()
		snap.Users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return tracking.Snapshot{}, err
	}

	entryRows, err := s.db.QueryContext(ctx, `
		SELECT user_id, in_time, out_time
		FROM clock_entries
		ORDER BY user_id, id
	`)
	if err != nil {
		return tracking.Snapshot{}, fmt.Errorf("load entries: %w", err)
	}
	defer entryRows.Close()
	for entryRows.Next() {
		var userID int64
		var in time.Time
		var out sql.NullTime
		if err := entryRows.Scan(&userID, &in, &out); err != nil {
			return tracking.Snapshot{}, err
		}
		e := tracking.Entry{In: in.UTC()}
		if out.Valid {
			t := out.Time.UTC()
			e.Out = &t
		}
		snap.Entries[userID] = append(snap.Entries[userID], e)
	}
	return snap, entryRows.Err()
}

// SaveUser upserts one user row.
func (s *PostgresStore) SaveUser(ctx context.Context, u tracking.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clock_users (id, name, full_name, timezone, is_admin, registered_date, is_employee)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			full_name = EXCLUDED.full_name,
			timezone = EXCLUDED.timezone,
			is_admin = EXCLUDED.is_admin,
			is_employee = EXCLUDED.is_employee
	`, u.ID, u.Name, u.FullName, u.Timezone, u.IsAdmin, u.RegisteredAt.UTC(), u.IsEmployee)
	return err
}

// AppendEntry inserts a new entry row.
func (s *PostgresStore) AppendEntry(ctx context.Context, userID int64, e tracking.Entry) error {
	var out *time.Time
	if e.Out != nil {
		t := e.Out.UTC()
		out = &t
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clock_entries (user_id, in_time, out_time)
		VALUES ($1,$2,$3)
	`, userID, e.In.UTC(), out)
	return err
}

// CloseEntry stamps the user's open entry. At most one row can be open per
// user, so no ordering clause is needed.
func (s *PostgresStore) CloseEntry(ctx context.Context, userID int64, out time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clock_entries SET out_time = $2
		WHERE user_id = $1 AND out_time IS NULL
	`, userID, out.UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close entry: user %d has no open entry", userID)
	}
	return nil
}

// ClearEntries wipes the entry table.
func (s *PostgresStore) ClearEntries(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE clock_entries`)
	return err
}
