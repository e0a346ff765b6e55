package task

import "context"

const sessionSweepJobName = "session_sweep"

// IdleSessionStore evicts sessions that have been idle too long.
type IdleSessionStore interface {
	Sweep() int
}

// SessionSweepJob drops idle shell sessions from memory.
type SessionSweepJob struct {
	store IdleSessionStore
}

// NewSessionSweepJob builds a sweep job over store.
func NewSessionSweepJob(store IdleSessionStore) *SessionSweepJob {
	return &SessionSweepJob{store: store}
}

// Name identifies the job in logs.
func (job *SessionSweepJob) Name() string {
	return sessionSweepJobName
}

// Run performs one sweep.
func (job *SessionSweepJob) Run(ctx context.Context) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	job.store.Sweep()
	return nil
}
