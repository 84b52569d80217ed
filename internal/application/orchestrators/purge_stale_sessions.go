package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// EntryPurger deletes persisted entries last written before cutoff.
type EntryPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPruner drops expired in-memory login sessions.
type SessionPruner interface {
	Prune(ctx context.Context) int
}

// PurgeStaleSessionsDeps holds dependencies for ExecutePurgeStaleSessions.
type PurgeStaleSessionsDeps struct {
	Store    EntryPurger
	Sessions SessionPruner // optional
	TTL      time.Duration
	Now      func() time.Time
}

// PurgeResult reports what one purge run removed.
type PurgeResult struct {
	Entries  int64
	Sessions int
}

// ExecutePurgeStaleSessions removes persisted tokens and in-memory sessions
// older than the session TTL.
// PRE: deps.TTL > 0
// POST: no persisted entry older than Now-TTL remains
func ExecutePurgeStaleSessions(ctx context.Context, deps PurgeStaleSessionsDeps) (PurgeResult, error) {
	if deps.TTL <= 0 {
		return PurgeResult{}, fmt.Errorf("purge: ttl must be positive, got %s", deps.TTL)
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	var result PurgeResult
	if deps.Sessions != nil {
		result.Sessions = deps.Sessions.Prune(ctx)
	}
	n, err := deps.Store.PurgeOlderThan(ctx, now().Add(-deps.TTL))
	if err != nil {
		return result, fmt.Errorf("purge stale entries: %w", err)
	}
	result.Entries = n
	slog.Info("purge_event", "event", "stale_sessions_purged", "entries", result.Entries, "sessions", result.Sessions)
	return result, nil
}

// StartPurgeSchedule runs ExecutePurgeStaleSessions on schedule until the
// returned scheduler is stopped.
// PRE: schedule is a standard cron spec or descriptor (e.g. "@every 1h")
func StartPurgeSchedule(schedule string, deps PurgeStaleSessionsDeps) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := ExecutePurgeStaleSessions(context.Background(), deps); err != nil {
			slog.Error("purge_event", "event", "purge_failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("purge_event", "event", "scheduled", "schedule", schedule)
	return c, nil
}
