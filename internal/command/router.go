package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timeclock/internal/idle"
	"timeclock/internal/tracking"
)

// Command is one resolved inbound operation from the messaging
// collaborator: who is calling, what they asked for, and the raw string
// arguments.
type Command struct {
	UserID    int64    `json:"user_id"`
	Name      string   `json:"name"`
	Args      []string `json:"args"`
	UserName  string   `json:"user_name"`
	FullName  string   `json:"full_name"`
	Private   bool     `json:"private"`
	ChatAdmin bool     `json:"chat_admin"`
}

// Action is a quick-action button the collaborator may render; pressing it
// re-submits Command verbatim.
type Action struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Reply is the text response plus optional quick actions.
type Reply struct {
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// confirmation is a short-lived pending clear-logs token for one admin,
// cleared after a single yes/no resolution or on expiry.
type confirmation struct {
	token   string
	expires time.Time
}

// Router is the command boundary: it maps named operations onto the
// tracking service, turns every taxonomy error into user-facing text, and
// holds pending confirmations. Nothing that happens here is fatal.
type Router struct {
	svc        *tracking.Service
	monitor    *idle.Monitor
	log        *zap.SugaredLogger
	confirmTTL time.Duration

	mu      sync.Mutex
	pending map[int64]confirmation

	now func() time.Time
}

// NewRouter wires the command surface. monitor may be nil when the caller
// does not run idle scans (the checkidle command then reports that).
func NewRouter(svc *tracking.Service, monitor *idle.Monitor, confirmTTL time.Duration, log *zap.SugaredLogger) *Router {
	if confirmTTL <= 0 {
		confirmTTL = 90 * time.Second
	}
	return &Router{
		svc:        svc,
		monitor:    monitor,
		log:        log,
		confirmTTL: confirmTTL,
		pending:    map[int64]confirmation{},
		now:        time.Now,
	}
}

// Dispatch executes one command and always returns a sendable reply.
func (r *Router) Dispatch(ctx context.Context, cmd Command) Reply {
	name := normalize(cmd.Name)
	commandsTotal.WithLabelValues(name).Inc()

	if name == "start" {
		return r.handleStart(ctx, cmd)
	}

	caller, ok := r.svc.User(cmd.UserID)
	if !ok {
		commandErrors.WithLabelValues(name).Inc()
		return Reply{Text: "Please register first with /start."}
	}

	var reply Reply
	switch name {
	case "clockin":
		reply = r.handleClockIn(ctx, caller)
	case "clockout":
		reply = r.handleClockOut(ctx, caller)
	case "status":
		reply = r.handleStatus(caller)
	case "report":
		reply = r.handleReport(caller, cmd.Args)
	case "team":
		reply = r.handleTeam(caller, cmd.Args)
	case "timezone":
		reply = r.handleTimezone(ctx, caller, cmd.Args)
	case "togglemode":
		reply = r.handleToggleMode(ctx, caller)
	case "checkidle":
		reply = r.handleCheckIdle(ctx, caller)
	case "clearlogs":
		reply = r.handleClearLogs(ctx, caller, cmd.Args)
	case "forceclear":
		reply = r.handleForceClear(ctx, caller)
	case "help":
		reply = r.handleHelp(caller)
	default:
		commandErrors.WithLabelValues(name).Inc()
		return Reply{Text: fmt.Sprintf("Unknown command %q. Try /help.", cmd.Name)}
	}
	return reply
}

// HandleText resolves free text against a pending confirmation. The second
// return is false when the text meant nothing to us and no reply should be
// sent.
func (r *Router) HandleText(ctx context.Context, userID int64, text string) (Reply, bool) {
	caller, ok := r.svc.User(userID)
	if !ok || !caller.IsAdmin {
		return Reply{}, false
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "confirm":
		if !r.takePending(userID) {
			return Reply{}, false
		}
		return r.executeClear(ctx), true
	case "no", "n", "cancel":
		if !r.takePending(userID) {
			return Reply{}, false
		}
		return Reply{Text: "❌ Clear logs operation cancelled."}, true
	}
	return Reply{}, false
}

func (r *Router) handleStart(ctx context.Context, cmd Command) Reply {
	u, created, err := r.svc.Register(ctx, tracking.RegisterParams{
		ID:        cmd.UserID,
		Name:      cmd.UserName,
		FullName:  cmd.FullName,
		Private:   cmd.Private,
		ChatAdmin: cmd.ChatAdmin,
	})
	if err != nil {
		return r.failure("start", err)
	}
	if !created {
		return Reply{Text: fmt.Sprintf("Welcome back, %s! You are already registered.", u.Name)}
	}
	adminNote := ""
	if u.IsAdmin {
		adminNote = " You've been set as an admin!"
	}
	return Reply{
		Text: fmt.Sprintf("Welcome %s! You can now track your work hours.%s\n"+
			"Use /clockin to start working and /clockout when you're done.\n"+
			"Check /help for more commands.", u.Name, adminNote),
	}
}

func (r *Router) handleClockIn(ctx context.Context, caller tracking.User) Reply {
	entry, err := r.svc.ClockIn(ctx, caller.ID)
	switch {
	case errors.Is(err, tracking.ErrAdminExempt):
		return adminExemptReply()
	case errors.Is(err, tracking.ErrAlreadyClockedIn):
		since := entry.In.In(caller.Location()).Format("15:04:05 on 02 Jan 2006")
		return Reply{Text: fmt.Sprintf("You are already clocked in since %s!", since)}
	case err != nil:
		return r.failure("clockin", err)
	}
	return Reply{
		Text:    "Successfully clocked in! ⏰",
		Actions: []Action{{Label: "⏱ Clock out", Command: "clockout"}},
	}
}

func (r *Router) handleClockOut(ctx context.Context, caller tracking.User) Reply {
	entry, dur, err := r.svc.ClockOut(ctx, caller.ID)
	switch {
	case errors.Is(err, tracking.ErrAdminExempt):
		return adminExemptReply()
	case errors.Is(err, tracking.ErrNoActiveSession):
		return Reply{Text: "You haven't clocked in yet!"}
	case errors.Is(err, tracking.ErrAlreadyClockedOut):
		return Reply{Text: "You are already clocked out!"}
	case err != nil:
		return r.failure("clockout", err)
	}
	loc := caller.Location()
	return Reply{
		Text: fmt.Sprintf("Clocked out!\nStarted: %s\nEnded: %s\nSession duration: %.2f hours",
			entry.In.In(loc).Format("15:04:05"),
			entry.Out.In(loc).Format("15:04:05"),
			dur.Seconds()/3600),
		Actions: []Action{
			{Label: "📊 Today's report", Command: "report today"},
			{Label: "⏱ Clock in again", Command: "clockin"},
		},
	}
}

func (r *Router) handleStatus(caller tracking.User) Reply {
	if caller.IsAdmin && !caller.IsEmployee {
		return Reply{
			Text: "👑 Admin mode\nAs an admin, you are not required to clock in/out.\n" +
				"Use the button below to view team reports.",
			Actions: []Action{{Label: "👥 Team report", Command: "team"}},
		}
	}
	st, err := r.svc.GetStatus(caller.ID)
	if err != nil {
		return r.failure("status", err)
	}
	if st.ClockedIn {
		since := st.Since.In(caller.Location()).Format("15:04:05")
		return Reply{
			Text: fmt.Sprintf("📌 Status: CLOCKED IN ✅\nStarted at: %s\nCurrent session: %.2f hours\nToday's total: %.2f hours",
				since, st.Session.Seconds()/3600, st.TodayHours),
			Actions: []Action{
				{Label: "⏱ Clock out", Command: "clockout"},
				{Label: "📊 Today's report", Command: "report today"},
			},
		}
	}
	return Reply{
		Text: fmt.Sprintf("📌 Status: CLOCKED OUT ⏸\nToday's total: %.2f hours", st.TodayHours),
		Actions: []Action{
			{Label: "⏱ Clock in", Command: "clockin"},
			{Label: "📊 Today's report", Command: "report today"},
		},
	}
}

func (r *Router) handleReport(caller tracking.User, args []string) Reply {
	if !caller.IsEmployee && !caller.IsAdmin {
		return Reply{Text: "Only employees can access their own reports."}
	}

	targetID := caller.ID
	if len(args) > 0 && strings.HasPrefix(args[0], "@") {
		if !caller.IsAdmin {
			return Reply{Text: "This command is for admins only."}
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "@"), 10, 64)
		if err != nil {
			return Reply{Text: "No matching user selected. Use the team report first."}
		}
		targetID = id
		args = args[1:]
	}

	// An admin outside employee mode asking for their own report gets the
	// team view instead; they have no entries of their own.
	if targetID == caller.ID && caller.IsAdmin && !caller.IsEmployee {
		return r.handleTeam(caller, args)
	}

	start, end, err := resolveRange(args, r.now())
	if errors.Is(err, tracking.ErrInvalidDateFormat) {
		return Reply{Text: "Invalid date format. Please use YYYY-MM-DD."}
	} else if err != nil {
		return r.failure("report", err)
	}

	body, err := r.svc.Report(targetID, start, end)
	if errors.Is(err, tracking.ErrNoMatchingUser) {
		return Reply{Text: "No matching user selected. Use the team report first."}
	} else if err != nil {
		return r.failure("report", err)
	}

	var title string
	var actions []Action
	if targetID != caller.ID {
		target, _ := r.svc.User(targetID)
		title = fmt.Sprintf("📊 Report for %s", target.FullName)
		actions = append(actions, Action{Label: "⬅ Back to team", Command: "team"})
	} else {
		title = "📊 Your Time Report"
	}
	actions = append(actions,
		Action{Label: "Today", Command: "report today"},
		Action{Label: "This week", Command: "report week"},
		Action{Label: "This month", Command: "report month"},
	)
	if caller.IsAdmin && targetID == caller.ID {
		actions = append(actions, Action{Label: "👥 Team report", Command: "team"})
	}
	return Reply{Text: title + "\n" + body, Actions: actions}
}

func (r *Router) handleTeam(caller tracking.User, args []string) Reply {
	if !caller.IsAdmin {
		return Reply{Text: "⚠️ This command is for admins only."}
	}
	start, end, err := resolveRange(args, r.now())
	if errors.Is(err, tracking.ErrInvalidDateFormat) {
		return Reply{Text: "Invalid date format. Please use YYYY-MM-DD."}
	} else if err != nil {
		return r.failure("team", err)
	}

	body, stats, err := r.svc.TeamReport(caller.ID, start, end)
	if err != nil {
		return r.failure("team", err)
	}

	actions := []Action{
		{Label: "Today", Command: "team today"},
		{Label: "This week", Command: "team week"},
		{Label: "This month", Command: "team month"},
	}
	// Drill-down targets are capped to keep the button list bounded; the
	// body above still lists everyone.
	const maxTargets = 5
	rangeArgs := start.Format("2006-01-02") + " " + end.Format("2006-01-02")
	for i, st := range stats {
		if i == maxTargets {
			break
		}
		actions = append(actions, Action{
			Label:   fmt.Sprintf("👤 %s (%.2fh)", st.Name, st.Hours),
			Command: fmt.Sprintf("report @%d %s", st.UserID, rangeArgs),
		})
	}
	return Reply{Text: body, Actions: actions}
}

func (r *Router) handleTimezone(ctx context.Context, caller tracking.User, args []string) Reply {
	if len(args) == 0 {
		return Reply{Text: fmt.Sprintf("Your current timezone is: %s\n"+
			"To change, use /timezone followed by a zone name, e.g.\n"+
			"/timezone Europe/London\n/timezone America/New_York\n/timezone Asia/Tokyo", caller.Timezone)}
	}
	err := r.svc.SetTimezone(ctx, caller.ID, args[0])
	if errors.Is(err, tracking.ErrUnknownTimezone) {
		return Reply{Text: fmt.Sprintf("Unknown timezone: %s\n"+
			"Please use a valid zone name, e.g. Africa/Lagos, Europe/London, America/New_York, Asia/Tokyo", args[0])}
	} else if err != nil {
		return r.failure("timezone", err)
	}
	return Reply{Text: fmt.Sprintf("Timezone updated to: %s", args[0])}
}

func (r *Router) handleToggleMode(ctx context.Context, caller tracking.User) Reply {
	if !caller.IsAdmin {
		return Reply{Text: "This command is for admins only."}
	}
	employee, err := r.svc.ToggleEmployeeMode(ctx, caller.ID)
	if err != nil {
		return r.failure("togglemode", err)
	}
	if employee {
		return Reply{Text: "✅ You are now in employee mode. Your work hours will be tracked."}
	}
	return Reply{Text: "👑 You are now in admin mode. Your work hours will not be tracked."}
}

func (r *Router) handleCheckIdle(ctx context.Context, caller tracking.User) Reply {
	if !caller.IsAdmin {
		return Reply{Text: "This command is for admins only."}
	}
	if r.monitor == nil {
		return Reply{Text: "Idle checks are not running in this process."}
	}
	n := r.monitor.Scan(ctx)
	return Reply{Text: fmt.Sprintf("✅ Idle check completed. %d notice(s) queued.", n)}
}

func (r *Router) handleClearLogs(ctx context.Context, caller tracking.User, args []string) Reply {
	if !caller.IsAdmin {
		return Reply{Text: "⚠️ This command is for admins only."}
	}

	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "yes", "y", "confirm":
			if !r.takePending(caller.ID) {
				return Reply{Text: "Nothing to confirm; the request may have expired. Run /clearlogs again."}
			}
			return r.executeClear(ctx)
		case "no", "n", "cancel":
			r.takePending(caller.ID)
			return Reply{Text: "❌ Clear logs operation cancelled."}
		}
	}

	token := uuid.NewString()
	r.mu.Lock()
	r.pending[caller.ID] = confirmation{token: token, expires: r.now().Add(r.confirmTTL)}
	r.mu.Unlock()
	r.log.Infow("clear logs confirmation issued", "admin_id", caller.ID, "token", token)

	return Reply{
		Text: "⚠️ WARNING: This will delete ALL time logs for ALL users!\n\n" +
			"This action cannot be undone. Are you sure you want to proceed?\n" +
			"Reply \"yes\" to confirm or \"no\" to cancel.",
		Actions: []Action{
			{Label: "✅ Yes, clear all logs", Command: "clearlogs yes"},
			{Label: "❌ No, cancel", Command: "clearlogs no"},
		},
	}
}

func (r *Router) handleForceClear(ctx context.Context, caller tracking.User) Reply {
	if !caller.IsAdmin {
		return Reply{Text: "⚠️ This command is for admins only."}
	}
	if err := r.svc.ClearEntries(ctx); err != nil {
		return r.failure("forceclear", err)
	}
	return Reply{Text: "🔥 Emergency log clear completed. All time entries have been deleted."}
}

func (r *Router) handleHelp(caller tracking.User) Reply {
	var b strings.Builder
	b.WriteString("📋 Available commands:\n\n")
	b.WriteString("For everyone:\n")
	b.WriteString("/start - Register as a user\n/status - Check current status\n/timezone - Set your timezone\n/help - Show this help\n\n")
	b.WriteString("For employees:\n")
	b.WriteString("/clockin - Start work session\n/clockout - End work session\n/report - Get work hours report\n")
	if caller.IsAdmin {
		b.WriteString("\nFor admins:\n")
		b.WriteString("/team - View team report\n/checkidle - Check for idle users\n/togglemode - Switch between admin/employee mode\n")
		b.WriteString("/clearlogs - Reset all time entries\n/forceclear - Emergency clear without confirmation\n")
	}
	b.WriteString("\nReport examples:\n")
	b.WriteString("/report - today\n/report 2025-04-20 - one date\n/report 2025-04-01 2025-04-30 - date range\n")
	b.WriteString("\nDates use YYYY-MM-DD. You'll get a reminder if clocked in too long.")
	return Reply{Text: b.String()}
}

// executeClear performs the confirmed wipe.
func (r *Router) executeClear(ctx context.Context) Reply {
	if err := r.svc.ClearEntries(ctx); err != nil {
		return r.failure("clearlogs", err)
	}
	return Reply{Text: "✅ All time logs have been cleared. Everyone starts fresh now!"}
}

// takePending consumes the caller's confirmation if one is still valid.
func (r *Router) takePending(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.pending[userID]
	delete(r.pending, userID)
	return ok && r.now().Before(c.expires)
}

func (r *Router) failure(name string, err error) Reply {
	commandErrors.WithLabelValues(name).Inc()
	r.log.Errorw("command failed", "command", name, "err", err)
	return Reply{Text: "Something went wrong. Please try again."}
}

// resolveRange expands the keyword shortcuts used by quick actions, then
// falls back to the ISO date convention (zero args = today).
func resolveRange(args []string, now time.Time) (time.Time, time.Time, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "today":
			return tracking.ParseDateRange(nil, now)
		case "week":
			start, end := tracking.WeekRange(now)
			return start, end, nil
		case "month":
			start, end := tracking.MonthRange(now)
			return start, end, nil
		}
	}
	return tracking.ParseDateRange(args, now)
}

func adminExemptReply() Reply {
	return Reply{
		Text: "👑 Admin mode\nAs an admin, you are not required to clock in/out.\n" +
			"Use /togglemode if you want to track your hours.",
	}
}

// normalize maps the API operation names and the chat front-end aliases
// onto one handler name each.
func normalize(name string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/")) {
	case "start", "register":
		return "start"
	case "clockin", "clock_in":
		return "clockin"
	case "clockout", "clock_out":
		return "clockout"
	case "team", "team_report":
		return "team"
	case "timezone", "set_timezone":
		return "timezone"
	case "togglemode", "toggle_role":
		return "togglemode"
	case "checkidle", "check_idle":
		return "checkidle"
	case "clearlogs", "clear_all_entries":
		return "clearlogs"
	case "forceclear", "force_clear":
		return "forceclear"
	default:
		return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	}
}
