package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"timeclock/internal/store"
	"timeclock/internal/tracking"
)

func newTestRouter(t *testing.T) (*Router, *tracking.Service) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc, err := tracking.NewService(context.Background(), fs, "Africa/Lagos")
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(svc, nil, time.Minute, zap.NewNop().Sugar()), svc
}

func dispatch(t *testing.T, r *Router, cmd Command) Reply {
	t.Helper()
	return r.Dispatch(context.Background(), cmd)
}

func register(t *testing.T, r *Router, id int64, name string) Reply {
	t.Helper()
	return dispatch(t, r, Command{UserID: id, Name: "start", UserName: name, FullName: name, Private: true})
}

func TestDispatchRequiresRegistration(t *testing.T) {
	r, _ := newTestRouter(t)
	reply := dispatch(t, r, Command{UserID: 5, Name: "clockin"})
	if !strings.Contains(reply.Text, "register first") {
		t.Fatalf("unregistered user reply: %q", reply.Text)
	}
}

func TestStartRegistersAndFlagsAdmin(t *testing.T) {
	r, _ := newTestRouter(t)

	first := register(t, r, 1, "Root")
	if !strings.Contains(first.Text, "set as an admin") {
		t.Fatalf("first user should become admin: %q", first.Text)
	}
	second := register(t, r, 2, "Eve")
	if strings.Contains(second.Text, "set as an admin") {
		t.Fatalf("second user must not become admin: %q", second.Text)
	}
	again := register(t, r, 2, "Eve")
	if !strings.Contains(again.Text, "already registered") {
		t.Fatalf("re-register reply: %q", again.Text)
	}
}

func TestClockInFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")

	first := dispatch(t, r, Command{UserID: 2, Name: "clockin"})
	if !strings.Contains(first.Text, "Successfully clocked in") {
		t.Fatalf("clock in reply: %q", first.Text)
	}
	if len(first.Actions) == 0 || first.Actions[0].Command != "clockout" {
		t.Fatalf("clock in should offer a clock-out action: %+v", first.Actions)
	}

	second := dispatch(t, r, Command{UserID: 2, Name: "clockin"})
	if !strings.Contains(second.Text, "already clocked in since") {
		t.Fatalf("double clock in reply: %q", second.Text)
	}

	out := dispatch(t, r, Command{UserID: 2, Name: "clockout"})
	if !strings.Contains(out.Text, "Session duration") {
		t.Fatalf("clock out reply: %q", out.Text)
	}
}

func TestAdminExemptReply(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")

	reply := dispatch(t, r, Command{UserID: 1, Name: "clockin"})
	if !strings.Contains(reply.Text, "Admin mode") {
		t.Fatalf("admin clock in reply: %q", reply.Text)
	}
}

func TestCommandNameAliases(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")

	if reply := dispatch(t, r, Command{UserID: 2, Name: "clock_in"}); !strings.Contains(reply.Text, "Successfully clocked in") {
		t.Fatalf("clock_in alias: %q", reply.Text)
	}
	if reply := dispatch(t, r, Command{UserID: 2, Name: "clock_out"}); !strings.Contains(reply.Text, "Session duration") {
		t.Fatalf("clock_out alias: %q", reply.Text)
	}
	if reply := dispatch(t, r, Command{UserID: 1, Name: "team_report"}); !strings.Contains(reply.Text, "Team Time Report") {
		t.Fatalf("team_report alias: %q", reply.Text)
	}
}

func TestTeamRequiresAdmin(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")

	reply := dispatch(t, r, Command{UserID: 2, Name: "team"})
	if !strings.Contains(reply.Text, "admins only") {
		t.Fatalf("non-admin team reply: %q", reply.Text)
	}
}

func TestReportInvalidDate(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")

	reply := dispatch(t, r, Command{UserID: 2, Name: "report", Args: []string{"21/04/2025"}})
	if !strings.Contains(reply.Text, "Invalid date format") {
		t.Fatalf("bad date reply: %q", reply.Text)
	}
}

func TestReportTargetSelector(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")
	dispatch(t, r, Command{UserID: 2, Name: "clockin"})

	// Employees may not use the admin drill-down.
	denied := dispatch(t, r, Command{UserID: 2, Name: "report", Args: []string{"@1"}})
	if !strings.Contains(denied.Text, "admins only") {
		t.Fatalf("selector by non-admin: %q", denied.Text)
	}

	missing := dispatch(t, r, Command{UserID: 1, Name: "report", Args: []string{"@999"}})
	if !strings.Contains(missing.Text, "No matching user") {
		t.Fatalf("selector for unknown user: %q", missing.Text)
	}

	ok := dispatch(t, r, Command{UserID: 1, Name: "report", Args: []string{"@2"}})
	if !strings.Contains(ok.Text, "Report for Eve") {
		t.Fatalf("admin drill-down: %q", ok.Text)
	}
}

func TestTeamReportQuickTargets(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")
	dispatch(t, r, Command{UserID: 2, Name: "clockin"})

	reply := dispatch(t, r, Command{UserID: 1, Name: "team"})
	if !strings.Contains(reply.Text, "Eve") {
		t.Fatalf("team body should list Eve: %q", reply.Text)
	}
	found := false
	for _, a := range reply.Actions {
		if strings.HasPrefix(a.Command, "report @2 ") {
			found = true
		}
	}
	if !found {
		t.Fatalf("team report should expose a drill-down for Eve: %+v", reply.Actions)
	}
}

func TestTimezoneCommand(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")

	show := dispatch(t, r, Command{UserID: 1, Name: "timezone"})
	if !strings.Contains(show.Text, "Africa/Lagos") {
		t.Fatalf("current timezone reply: %q", show.Text)
	}

	set := dispatch(t, r, Command{UserID: 1, Name: "timezone", Args: []string{"Europe/London"}})
	if !strings.Contains(set.Text, "Timezone updated to: Europe/London") {
		t.Fatalf("set timezone reply: %q", set.Text)
	}

	bad := dispatch(t, r, Command{UserID: 1, Name: "timezone", Args: []string{"Nowhere/Void"}})
	if !strings.Contains(bad.Text, "Unknown timezone") {
		t.Fatalf("bad timezone reply: %q", bad.Text)
	}
}

func TestClearLogsConfirmationFlow(t *testing.T) {
	r, svc := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")
	dispatch(t, r, Command{UserID: 2, Name: "clockin"})

	// Confirming with nothing pending does nothing.
	idleConfirm := dispatch(t, r, Command{UserID: 1, Name: "clearlogs", Args: []string{"yes"}})
	if !strings.Contains(idleConfirm.Text, "Nothing to confirm") {
		t.Fatalf("confirm without pending: %q", idleConfirm.Text)
	}

	warn := dispatch(t, r, Command{UserID: 1, Name: "clearlogs"})
	if !strings.Contains(warn.Text, "WARNING") || len(warn.Actions) != 2 {
		t.Fatalf("warning reply: %q %+v", warn.Text, warn.Actions)
	}

	done := dispatch(t, r, Command{UserID: 1, Name: "clearlogs", Args: []string{"yes"}})
	if !strings.Contains(done.Text, "cleared") {
		t.Fatalf("confirmed clear reply: %q", done.Text)
	}

	status, err := svc.GetStatus(2)
	if err != nil {
		t.Fatal(err)
	}
	if status.ClockedIn {
		t.Fatal("entries should be gone after confirmed clear")
	}

	// The token is single-use.
	reuse := dispatch(t, r, Command{UserID: 1, Name: "clearlogs", Args: []string{"yes"}})
	if !strings.Contains(reuse.Text, "Nothing to confirm") {
		t.Fatalf("token reuse: %q", reuse.Text)
	}
}

func TestClearLogsConfirmationExpires(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	dispatch(t, r, Command{UserID: 1, Name: "clearlogs"})

	r.now = func() time.Time { return base.Add(2 * time.Minute) }
	late := dispatch(t, r, Command{UserID: 1, Name: "clearlogs", Args: []string{"yes"}})
	if !strings.Contains(late.Text, "Nothing to confirm") {
		t.Fatalf("expired confirmation: %q", late.Text)
	}
}

func TestHandleTextConfirmation(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")
	ctx := context.Background()

	// Plain chatter from anyone is ignored.
	if _, handled := r.HandleText(ctx, 2, "hello"); handled {
		t.Fatal("text from non-admin must not be handled")
	}
	if _, handled := r.HandleText(ctx, 1, "yes"); handled {
		t.Fatal("yes with nothing pending must not be handled")
	}

	dispatch(t, r, Command{UserID: 1, Name: "clearlogs"})
	reply, handled := r.HandleText(ctx, 1, "No")
	if !handled || !strings.Contains(reply.Text, "cancelled") {
		t.Fatalf("text cancel: handled=%v %q", handled, reply.Text)
	}
}

func TestCheckIdleWithoutMonitor(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")

	reply := dispatch(t, r, Command{UserID: 1, Name: "checkidle"})
	if !strings.Contains(reply.Text, "not running") {
		t.Fatalf("checkidle without monitor: %q", reply.Text)
	}
}

func TestUnknownCommand(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")

	reply := dispatch(t, r, Command{UserID: 1, Name: "dance"})
	if !strings.Contains(reply.Text, "Unknown command") {
		t.Fatalf("unknown command reply: %q", reply.Text)
	}
}

func TestHelpShowsAdminSectionOnlyToAdmins(t *testing.T) {
	r, _ := newTestRouter(t)
	register(t, r, 1, "Root")
	register(t, r, 2, "Eve")

	admin := dispatch(t, r, Command{UserID: 1, Name: "help"})
	if !strings.Contains(admin.Text, "/clearlogs") {
		t.Fatalf("admin help: %q", admin.Text)
	}
	emp := dispatch(t, r, Command{UserID: 2, Name: "help"})
	if strings.Contains(emp.Text, "/clearlogs") {
		t.Fatalf("employee help leaks admin commands: %q", emp.Text)
	}
}
