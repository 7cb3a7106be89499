package tracking

import "errors"

// Command-boundary error taxonomy. Every one of these is recovered into a
// user-facing text reply; none is fatal to the process.
var (
	ErrUnregisteredUser  = errors.New("user is not registered")
	ErrAlreadyClockedIn  = errors.New("already clocked in")
	ErrNoActiveSession   = errors.New("no active session")
	ErrAlreadyClockedOut = errors.New("already clocked out")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrUnknownTimezone   = errors.New("unknown timezone")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNoMatchingUser    = errors.New("no matching user selected")

	// ErrAdminExempt short-circuits clock operations for admins who are
	// not in employee mode; it carries no ledger mutation.
	ErrAdminExempt = errors.New("admin is exempt from clocking")
)
