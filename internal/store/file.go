package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"timeclock/internal/tracking"
)

const (
	usersFile   = "users.json"
	entriesFile = "time_entries.json"
)

// userRecord is the on-disk user row. Timestamps are ISO-8601 UTC.
type userRecord struct {
	Name           string `json:"name"`
	FullName       string `json:"full_name"`
	Timezone       string `json:"timezone"`
	IsAdmin        bool   `json:"is_admin"`
	RegisteredDate string `json:"registered_date"`
	IsEmployee     bool   `json:"is_employee"`
}

// entryRecord is the on-disk entry row. A null out_time is an open session.
type entryRecord struct {
	InTime  string  `json:"in_time"`
	OutTime *string `json:"out_time"`
}

// FileStore keeps the ledger in two JSON files under a data directory:
// a user table and an ordered entry table, both keyed by decimal user id.
type FileStore struct {
	mu  sync.Mutex
	dir string

	users   map[string]userRecord
	entries map[string][]entryRecord
}

// NewFileStore opens (creating if needed) a file-backed ledger in dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs := &FileStore{
		dir:     dir,
		users:   map[string]userRecord{},
		entries: map[string][]entryRecord{},
	}
	if err := readJSON(filepath.Join(dir, usersFile), &fs.users); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, entriesFile), &fs.entries); err != nil {
		return nil, err
	}
	return fs, nil
}

// Load decodes the persisted ledger into domain types.
func (fs *FileStore) Load(ctx context.Context) (tracking.Snapshot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snap := tracking.Snapshot{
		Users:   map[int64]tracking.User{},
		Entries: map[int64][]tracking.Entry{},
	}
	for key, rec := range fs.users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return tracking.Snapshot{}, fmt.Errorf("bad user id %q: %w", key, err)
		}
		registered, err := time.Parse(time.RFC3339Nano, rec.RegisteredDate)
		if err != nil {
			return tracking.Snapshot{}, fmt.Errorf("user %s registered_date: %w", key, err)
		}
		snap.Users[id] = tracking.User{
			ID:           id,
			Name:         rec.Name,
			FullName:     rec.FullName,
			Timezone:     rec.Timezone,
			IsAdmin:      rec.IsAdmin,
			IsEmployee:   rec.IsEmployee,
			RegisteredAt: registered.UTC(),
		}
	}
	for key, recs := range fs.entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return tracking.Snapshot{}, fmt.Errorf("bad user id %q: %w", key, err)
		}
		seq := make([]tracking.Entry, 0, len(recs))
		for i, rec := range recs {
			in, err := time.Parse(time.RFC3339Nano, rec.InTime)
			if err != nil {
				return tracking.Snapshot{}, fmt.Errorf("entry %s[%d] in_time: %w", key, i, err)
			}
			e := tracking.Entry{In: in.UTC()}
			if rec.OutTime != nil {
				out, err := time.Parse(time.RFC3339Nano, *rec.OutTime)
				if err != nil {
					return tracking.Snapshot{}, fmt.Errorf("entry %s[%d] out_time: %w", key, i, err)
				}
				outUTC := out.UTC()
				e.Out = &outUTC
			}
			seq = append(seq, e)
		}
		snap.Entries[id] = seq
	}
	return snap, nil
}

// SaveUser writes through one user record.
func (fs *FileStore) SaveUser(ctx context.Context, u tracking.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.users[strconv.FormatInt(u.ID, 10)] = userRecord{
		Name:           u.Name,
		FullName:       u.FullName,
		Timezone:       u.Timezone,
		IsAdmin:        u.IsAdmin,
		RegisteredDate: u.RegisteredAt.UTC().Format(time.RFC3339Nano),
		IsEmployee:     u.IsEmployee,
	}
	return writeJSON(filepath.Join(fs.dir, usersFile), fs.users)
}

// AppendEntry writes through a new entry for the user.
func (fs *FileStore) AppendEntry(ctx context.Context, userID int64, e tracking.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	fs.entries[key] = append(fs.entries[key], encodeEntry(e))
	return writeJSON(filepath.Join(fs.dir, entriesFile), fs.entries)
}

// CloseEntry sets out_time on the user's last, open entry.
func (fs *FileStore) CloseEntry(ctx context.Context, userID int64, out time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	seq := fs.entries[key]
	if len(seq) == 0 || seq[len(seq)-1].OutTime != nil {
		return fmt.Errorf("close entry: user %d has no open entry", userID)
	}
	s := out.UTC().Format(time.RFC3339Nano)
	seq[len(seq)-1].OutTime = &s
	return writeJSON(filepath.Join(fs.dir, entriesFile), fs.entries)
}

// ClearEntries drops the whole entry table and removes its file.
func (fs *FileStore) ClearEntries(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entries = map[string][]entryRecord{}
	if err := os.Remove(filepath.Join(fs.dir, entriesFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove entries file: %w", err)
	}
	return nil
}

func encodeEntry(e tracking.Entry) entryRecord {
	rec := entryRecord{InTime: e.In.UTC().Format(time.RFC3339Nano)}
	if e.Out != nil {
		s := e.Out.UTC().Format(time.RFC3339Nano)
		rec.OutTime = &s
	}
	return rec
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file and rename.
func writeJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
