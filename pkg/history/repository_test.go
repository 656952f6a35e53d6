package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropdeck/dropdeck/pkg/types"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryRecordAndList(t *testing.T) {
	repo := newTestRepository(t)

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(TransferEvent{
		FileID:     "f1",
		SessionID:  "s1",
		FileName:   "a.txt",
		SizeBytes:  1000,
		Status:     types.FileStatusCompleted,
		RemoteURL:  "https://example.com/files/a.txt",
		OccurredAt: base,
	}))
	require.NoError(t, repo.Record(TransferEvent{
		FileID:     "f2",
		SessionID:  "s1",
		FileName:   "b.txt",
		SizeBytes:  2000,
		Status:     types.FileStatusFailed,
		Error:      "network error",
		OccurredAt: base.Add(time.Second),
	}))

	events, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "f2", events[0].FileID)
	assert.Equal(t, types.FileStatusFailed, events[0].Status)
	assert.Equal(t, "network error", events[0].Error)
	assert.Equal(t, "f1", events[1].FileID)
	assert.Equal(t, "https://example.com/files/a.txt", events[1].RemoteURL)
}

func TestRepositoryListLimit(t *testing.T) {
	repo := newTestRepository(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(TransferEvent{
			FileID:    "f",
			SessionID: "s",
			FileName:  "a.txt",
			Status:    types.FileStatusCompleted,
		}))
	}

	events, err := repo.List(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRepositoryListBySession(t *testing.T) {
	repo := newTestRepository(t)

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	for i, sessionID := range []string{"s1", "s2", "s1"} {
		require.NoError(t, repo.Record(TransferEvent{
			FileID:     "f",
			SessionID:  sessionID,
			FileName:   "a.txt",
			Status:     types.FileStatusCompleted,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := repo.ListBySession("s1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Oldest first within a session.
	assert.True(t, events[0].OccurredAt.Before(events[1].OccurredAt))

	events, err = repo.ListBySession("unknown")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepositoryDefaultsToInMemory(t *testing.T) {
	repo, err := NewRepository("")
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Record(TransferEvent{
		FileID:    "f1",
		SessionID: "s1",
		FileName:  "a.txt",
		Status:    types.FileStatusCompleted,
	}))

	events, err := repo.List(1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
