package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropdeck/dropdeck/pkg/types"
)

// FileStore is an in-memory collection of file records. All methods are
// safe for concurrent use; records cross the store boundary by value, so
// callers can never mutate stored state through a returned record.
//
// The store is policy-free: it does not know about upload state machines.
// Rejecting a delete of an in-flight file is the orchestrator's job.
type FileStore struct {
	mu      sync.RWMutex
	records map[string]types.FileRecord
	order   []string
	clock   func() time.Time
}

// NewFileStore creates an empty file store
func NewFileStore() *FileStore {
	return &FileStore{
		records: make(map[string]types.FileRecord),
		clock:   time.Now,
	}
}

// NewFileStoreWithClock creates a file store using the given clock.
// Used by tests to control timestamps.
func NewFileStoreWithClock(clock func() time.Time) *FileStore {
	s := NewFileStore()
	s.clock = clock
	return s
}

// Create registers a new file record from selection-time metadata.
// The record starts pending with zero progress and a fresh unique id.
func (s *FileStore) Create(meta types.FileMeta, sessionID string) types.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := types.FileRecord{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Name:            meta.Name,
		SizeBytes:       meta.SizeBytes,
		MimeType:        meta.MimeType,
		LastModifiedAt:  meta.LastModifiedAt,
		Status:          types.FileStatusPending,
		ProgressPercent: 0,
		CreatedAt:       s.clock(),
	}

	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return record
}

// Get returns a copy of the record with the given id
func (s *FileStore) Get(id string) (types.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return record, nil
}

// Update merges the patch into the stored record and returns the result.
// Progress values are clamped to [0,100].
func (s *FileStore) Update(id string, patch types.FilePatch) (types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}

	if patch.Status != nil {
		record.Status = *patch.Status
		if record.Status == types.FileStatusCompleted {
			record.ProgressPercent = 100
		}
	}
	if patch.ProgressPercent != nil {
		p := *patch.ProgressPercent
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		record.ProgressPercent = p
	}
	if patch.RemoteURL != nil {
		record.RemoteURL = *patch.RemoteURL
	}

	s.records[id] = record
	return record, nil
}

// Delete removes the record with the given id and returns it
func (s *FileStore) Delete(id string) (types.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}

	delete(s.records, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return record, nil
}

// List returns copies of all records in creation order
func (s *FileStore) List() []types.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]types.FileRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	return records
}

// Seed inserts a prebuilt record, preserving its id and status. Only the
// sample-data loader uses this; normal creation goes through Create.
func (s *FileStore) Seed(record types.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, exists := s.records[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = record
}

// ListBySession returns copies of all records belonging to a session,
// in creation order.
func (s *FileStore) ListBySession(sessionID string) []types.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []types.FileRecord
	for _, id := range s.order {
		if record := s.records[id]; record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	return records
}
