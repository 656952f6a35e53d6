package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/types"
)

// Data is the on-disk shape of a sample-data file
type Data struct {
	Sessions []types.UploadSession `json:"sessions"`
	Files    []types.FileRecord    `json:"files"`
}

// Load populates the stores from a JSON sample-data file. A missing file
// is not an error; the service simply starts empty. Returns the number
// of sessions and files loaded.
func Load(path string, files *store.FileStore, sessions *store.SessionStore) (int, int, error) {
	if path == "" {
		return 0, 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var payload Data
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, session := range payload.Sessions {
		sessions.Seed(session)
	}
	for _, record := range payload.Files {
		files.Seed(record)
	}

	return len(payload.Sessions), len(payload.Files), nil
}
