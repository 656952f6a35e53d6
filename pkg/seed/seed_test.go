package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/types"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"sessions": [
			{"id": "s1", "total_files": 1, "total_size_bytes": 100, "uploaded_size_bytes": 100}
		],
		"files": [
			{"id": "f1", "session_id": "s1", "name": "a.txt", "size_bytes": 100, "status": "completed", "progress_percent": 100}
		]
	}`), 0644))

	files := store.NewFileStore()
	sessions := store.NewSessionStore()

	nSessions, nFiles, err := Load(path, files, sessions)
	require.NoError(t, err)
	assert.Equal(t, 1, nSessions)
	assert.Equal(t, 1, nFiles)

	record, err := files.Get("f1")
	require.NoError(t, err)
	assert.Equal(t, types.FileStatusCompleted, record.Status)
	assert.Equal(t, "s1", record.SessionID)

	session, err := sessions.Get("s1")
	require.NoError(t, err)
	assert.True(t, session.Completed())
}

func TestLoadMissingFile(t *testing.T) {
	nSessions, nFiles, err := Load(filepath.Join(t.TempDir(), "absent.json"), store.NewFileStore(), store.NewSessionStore())
	require.NoError(t, err)
	assert.Zero(t, nSessions)
	assert.Zero(t, nFiles)
}

func TestLoadEmptyPath(t *testing.T) {
	_, _, err := Load("", store.NewFileStore(), store.NewSessionStore())
	require.NoError(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, _, err := Load(path, store.NewFileStore(), store.NewSessionStore())
	assert.Error(t, err)
}
