package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigManager_Load(t *testing.T) {
	tests := []struct {
		name          string
		configYAML    string
		envVars       map[string]string
		expectedError bool
		validate      func(*testing.T, *Config)
	}{
		{
			name: "Default config",
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "8080", config.Server.Port)
				assert.Equal(t, 200*time.Millisecond, config.Upload.TickInterval)
				assert.Equal(t, 15.0, config.Upload.MaxIncrement)
				assert.Equal(t, time.Second, config.API.PollInterval)
				assert.True(t, config.History.Enabled)
				assert.Empty(t, config.History.DSN)
			},
		},
		{
			name: "File config",
			configYAML: `
server:
  port: "9090"
upload:
  max_file_size_bytes: 1048576
  accepted_types: ["image/*", "application/pdf"]
  tick_interval: 100ms
  max_increment: 25
history:
  dsn: ./events.db
  enabled: true
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "9090", config.Server.Port)
				assert.Equal(t, int64(1048576), config.Upload.MaxFileSizeBytes)
				assert.Equal(t, []string{"image/*", "application/pdf"}, config.Upload.AcceptedTypes)
				assert.Equal(t, 100*time.Millisecond, config.Upload.TickInterval)
				assert.Equal(t, 25.0, config.Upload.MaxIncrement)
				assert.Equal(t, "./events.db", config.History.DSN)
			},
		},
		{
			name: "Environment override",
			envVars: map[string]string{
				"SERVER_PORT":           "8081",
				"UPLOAD_TICK_INTERVAL":  "50ms",
				"UPLOAD_MAX_INCREMENT":  "10",
				"UPLOAD_ACCEPTED_TYPES": "image/*, video/*",
				"API_KEY":               "secret",
			},
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "8081", config.Server.Port)
				assert.Equal(t, 50*time.Millisecond, config.Upload.TickInterval)
				assert.Equal(t, 10.0, config.Upload.MaxIncrement)
				assert.Equal(t, []string{"image/*", "video/*"}, config.Upload.AcceptedTypes)
				assert.Equal(t, "secret", config.API.Key)
			},
		},
		{
			name: "Invalid tick interval",
			configYAML: `
upload:
  tick_interval: -1s
`,
			expectedError: true,
		},
		{
			name: "Invalid max increment",
			envVars: map[string]string{
				"UPLOAD_MAX_INCREMENT": "150",
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			configPath := ""
			if tt.configYAML != "" {
				configPath = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(configPath, []byte(tt.configYAML), 0644))
			}

			config, err := NewConfigManager().Load(configPath)
			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestConfigManager_MissingFileUsesDefaults(t *testing.T) {
	config, err := NewConfigManager().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", config.Server.Port)
}
