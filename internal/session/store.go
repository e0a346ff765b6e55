package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultIdleTimeout    = 12 * time.Hour
	logEventSessionsSwept = "sessions_swept"
	logFieldEvicted       = "evicted"
	logFieldRemaining     = "remaining"
)

// Store keeps sessions in process memory. Nothing survives a restart.
type Store struct {
	mutex       sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewStore builds an empty store.
func NewStore(logger *zap.Logger, idleTimeout time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the time source.
func (store *Store) WithClock(now func() time.Time) *Store {
	store.now = now
	return store
}

// Create registers a new logged-out session.
func (store *Store) Create() *Session {
	created := newSession(uuid.NewString(), store.now())
	store.mutex.Lock()
	store.sessions[created.ID] = created
	store.mutex.Unlock()
	return created
}

// Lookup returns a live session and records activity on it.
func (store *Store) Lookup(sessionID string) (*Session, bool) {
	if sessionID == "" {
		return nil, false
	}
	store.mutex.RLock()
	found, exists := store.sessions[sessionID]
	store.mutex.RUnlock()
	if !exists {
		return nil, false
	}
	found.Touch(store.now())
	return found, true
}

// Remove drops a session.
func (store *Store) Remove(sessionID string) {
	store.mutex.Lock()
	delete(store.sessions, sessionID)
	store.mutex.Unlock()
}

// Len reports the number of live sessions.
func (store *Store) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.sessions)
}

// Sweep evicts sessions idle longer than the idle timeout.
func (store *Store) Sweep() int {
	cutoff := store.now().Add(-store.idleTimeout)
	store.mutex.Lock()
	evicted := 0
	for sessionID, candidate := range store.sessions {
		if candidate.LastSeen().Before(cutoff) {
			delete(store.sessions, sessionID)
			evicted++
		}
	}
	remaining := len(store.sessions)
	store.mutex.Unlock()

	if evicted > 0 {
		store.logger.Info(logEventSessionsSwept, zap.Int(logFieldEvicted, evicted), zap.Int(logFieldRemaining, remaining))
	}
	return evicted
}
