package jobs

import (
	"context"
	"log"
	"time"

	"taskpilot/internal/services"
)

// SessionCleanupJob marks idle sessions inactive on a fixed interval.
// Expiry is soft: rows stay in place so a later create with the same
// conversation id can reuse them.
type SessionCleanupJob struct {
	store    *services.SessionStore
	appName  string
	maxAge   time.Duration
	interval time.Duration
	lastRun  time.Time
}

// NewSessionCleanupJob creates a new session cleanup job
func NewSessionCleanupJob(store *services.SessionStore, appName string, maxAge time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{
		store:    store,
		appName:  appName,
		maxAge:   maxAge,
		interval: 1 * time.Hour,
	}
}

// Run sweeps sessions whose last activity is older than the configured max age
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	count, err := j.store.CleanupExpiredSessions(ctx, j.appName, j.maxAge)
	if err != nil {
		log.Printf("❌ [CLEANUP] Session expiry sweep failed: %v", err)
		return err
	}

	if count > 0 {
		log.Printf("🧹 [CLEANUP] Session expiry sweep marked %d sessions inactive", count)
	}
	return nil
}

// GetNextRunTime returns when this job should next execute
func (j *SessionCleanupJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		// First run: 1 minute after startup (give time for server to init)
		return time.Now().Add(1 * time.Minute)
	}
	return j.lastRun.Add(j.interval)
}
