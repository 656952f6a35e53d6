package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropdeck/dropdeck/pkg/types"
)

// SessionStore is an in-memory collection of upload sessions. Like
// FileStore it hands out copies and is safe for concurrent use.
//
// The store owns the derived-speed rule: whenever a patch sets the
// uploaded size, the average speed is recomputed from the session's own
// start time before the patch is merged. Uploaded size is monotonic;
// an update below the current value is rejected with ErrStaleProgress
// and a value above the batch total is clamped to it.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]types.UploadSession
	order    []string
	clock    func() time.Time
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]types.UploadSession),
		clock:    time.Now,
	}
}

// NewSessionStoreWithClock creates a session store using the given clock.
// Used by tests to control elapsed time without sleeping.
func NewSessionStoreWithClock(clock func() time.Time) *SessionStore {
	s := NewSessionStore()
	s.clock = clock
	return s
}

// Create opens a new session for a batch. The start time is stamped from
// the store clock and accounting begins at zero.
func (s *SessionStore) Create(spec types.SessionSpec) types.UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := types.UploadSession{
		ID:                   uuid.New().String(),
		TotalFiles:           spec.TotalFiles,
		TotalSizeBytes:       spec.TotalSizeBytes,
		UploadedSizeBytes:    0,
		StartedAt:            s.clock(),
		AverageSpeedBytesSec: 0,
	}

	s.sessions[session.ID] = session
	s.order = append(s.order, session.ID)
	return session
}

// Get returns a copy of the session with the given id
func (s *SessionStore) Get(id string) (types.UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.UploadSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return session, nil
}

// Update merges the patch into the stored session and returns the result
func (s *SessionStore) Update(id string, patch types.SessionPatch) (types.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.UploadSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	if patch.UploadedSizeBytes != nil {
		uploaded := *patch.UploadedSizeBytes
		if uploaded < session.UploadedSizeBytes {
			return types.UploadSession{}, fmt.Errorf(
				"session %s: %d < %d: %w",
				id, uploaded, session.UploadedSizeBytes, ErrStaleProgress)
		}
		if uploaded > session.TotalSizeBytes {
			uploaded = session.TotalSizeBytes
		}

		elapsed := s.clock().Sub(session.StartedAt).Seconds()
		if elapsed > 0 {
			session.AverageSpeedBytesSec = float64(uploaded) / elapsed
		} else {
			session.AverageSpeedBytesSec = 0
		}
		session.UploadedSizeBytes = uploaded
	}

	s.sessions[id] = session
	return session, nil
}

// Delete removes the session with the given id and returns it
func (s *SessionStore) Delete(id string) (types.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.UploadSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	delete(s.sessions, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return session, nil
}

// List returns copies of all sessions in creation order
func (s *SessionStore) List() []types.UploadSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]types.UploadSession, 0, len(s.order))
	for _, id := range s.order {
		sessions = append(sessions, s.sessions[id])
	}
	return sessions
}

// Seed inserts a prebuilt session, preserving its id and timestamps.
// Only the sample-data loader uses this; normal creation goes through
// Create.
func (s *SessionStore) Seed(session types.UploadSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if _, exists := s.sessions[session.ID]; !exists {
		s.order = append(s.order, session.ID)
	}
	s.sessions[session.ID] = session
}
