package idle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"timeclock/internal/queue"
	"timeclock/internal/tracking"
)

// MessageType tags idle notices on the queue.
const MessageType = "idle_notice"

var noticesPublished = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "timeclock_idle_notices_total",
	Help: "Idle notices published to the delivery queue.",
})

func init() {
	prometheus.MustRegister(noticesPublished)
}

// Notice is the queued payload the delivery worker turns into a chat
// message.
type Notice struct {
	UserID int64   `json:"user_id"`
	Hours  float64 `json:"hours"`
	Since  string  `json:"since"`
	Text   string  `json:"text"`
}

// Monitor periodically scans the ledger for sessions open longer than the
// threshold and publishes one notice per idle user per scan. It never
// clocks anyone out, and it keeps no memory across scans: a user who stays
// idle is re-notified every interval.
type Monitor struct {
	svc        *tracking.Service
	q          queue.Queue
	threshold  time.Duration
	interval   time.Duration
	firstDelay time.Duration
	log        *zap.SugaredLogger
}

// NewMonitor builds a monitor; interval and firstDelay are cadence knobs,
// threshold is the idle rule.
func NewMonitor(svc *tracking.Service, q queue.Queue, threshold, interval, firstDelay time.Duration, log *zap.SugaredLogger) *Monitor {
	if threshold <= 0 {
		threshold = 12 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Monitor{svc: svc, q: q, threshold: threshold, interval: interval, firstDelay: firstDelay, log: log}
}

// Run blocks until ctx is done, scanning shortly after start and then on
// every interval tick.
func (m *Monitor) Run(ctx context.Context) {
	select {
	case <-time.After(m.firstDelay):
	case <-ctx.Done():
		return
	}
	m.Scan(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Scan(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Scan publishes a notice for every currently idle session and returns how
// many were published. A publish failure for one user is logged and does
// not stop the rest.
func (m *Monitor) Scan(ctx context.Context) int {
	published := 0
	for _, s := range m.svc.IdleSessions(m.threshold) {
		notice := noticeFor(s)
		body, err := json.Marshal(notice)
		if err != nil {
			m.log.Errorw("encode idle notice", "user_id", s.UserID, "err", err)
			continue
		}
		if err := m.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
			m.log.Errorw("publish idle notice", "user_id", s.UserID, "err", err)
			continue
		}
		noticesPublished.Inc()
		published++
	}
	return published
}

func noticeFor(s tracking.IdleSession) Notice {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hours := s.Elapsed.Seconds() / 3600
	since := s.In.In(loc).Format("15:04:05 on 02 Jan 2006")
	return Notice{
		UserID: s.UserID,
		Hours:  hours,
		Since:  since,
		Text: fmt.Sprintf("⚠️ Idle warning\nYou've been clocked in for %.1f hours (since %s).\nDid you forget to clock out?",
			hours, since),
	}
}
