package tracking

import (
	"context"
	"time"
)

// Store persists the ledger. The service writes through after every
// mutation; Load is called once at startup.
type Store interface {
	// Load returns the full persisted ledger.
	Load(ctx context.Context) (Snapshot, error)
	// SaveUser creates or replaces one user record.
	SaveUser(ctx context.Context, u User) error
	// AppendEntry appends a new (open or closed) entry for a user.
	AppendEntry(ctx context.Context, userID int64, e Entry) error
	// CloseEntry sets the out time on the user's open entry.
	CloseEntry(ctx context.Context, userID int64, out time.Time) error
	// ClearEntries deletes every time entry for every user.
	ClearEntries(ctx context.Context) error
}
