package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	API     APIConfig     `yaml:"api" json:"api"`
	Upload  UploadConfig  `yaml:"upload" json:"upload"`
	History HistoryConfig `yaml:"history" json:"history"`
	Seed    SeedConfig    `yaml:"seed" json:"seed"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"SERVER_HOST"`
	Port         string        `yaml:"port" json:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// APIConfig holds API configuration
type APIConfig struct {
	Key          string        `yaml:"key" json:"key" env:"API_KEY"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" env:"API_POLL_INTERVAL"`
}

// UploadConfig holds batch acceptance and simulation configuration
type UploadConfig struct {
	MaxFileSizeBytes int64         `yaml:"max_file_size_bytes" json:"max_file_size_bytes" env:"UPLOAD_MAX_FILE_SIZE"`
	AcceptedTypes    []string      `yaml:"accepted_types" json:"accepted_types" env:"UPLOAD_ACCEPTED_TYPES"`
	MaxBatchSize     int           `yaml:"max_batch_size" json:"max_batch_size" env:"UPLOAD_MAX_BATCH_SIZE"`
	TickInterval     time.Duration `yaml:"tick_interval" json:"tick_interval" env:"UPLOAD_TICK_INTERVAL"`
	MaxIncrement     float64       `yaml:"max_increment" json:"max_increment" env:"UPLOAD_MAX_INCREMENT"`
	RemoteBaseURL    string        `yaml:"remote_base_url" json:"remote_base_url" env:"UPLOAD_REMOTE_BASE_URL"`
}

// HistoryConfig holds the transfer-event log configuration
type HistoryConfig struct {
	// DSN of the SQLite event log. Empty keeps the log in memory so no
	// state survives a restart.
	DSN     string `yaml:"dsn" json:"dsn" env:"HISTORY_DSN"`
	Enabled bool   `yaml:"enabled" json:"enabled" env:"HISTORY_ENABLED"`
}

// SeedConfig holds sample-data seeding configuration
type SeedConfig struct {
	Path string `yaml:"path" json:"path" env:"SEED_PATH"`
}

// ConfigManager manages configuration loading and validation
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{}
}

// Load loads configuration from file and environment variables
func (cm *ConfigManager) Load(configPath string) (*Config, error) {
	cm.configPath = configPath

	// Start with default configuration
	config := cm.defaultConfig()

	// Load from file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cm.loadFromFile(config, configPath); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cm.validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.config = config
	return config, nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// loadFromFile loads configuration from a YAML file
func (cm *ConfigManager) loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// loadFromEnv loads configuration from environment variables
func (cm *ConfigManager) loadFromEnv(config *Config) error {
	return cm.setEnvVars(reflect.ValueOf(config).Elem())
}

// setEnvVars recursively sets environment variables on struct fields
func (cm *ConfigManager) setEnvVars(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			if field.Kind() == reflect.Struct {
				if err := cm.setEnvVars(field); err != nil {
					return err
				}
			}
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := cm.setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// setFieldValue sets a field value from an environment variable string
func (cm *ConfigManager) setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			var intValue int64
			if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
				return err
			}
			field.SetInt(intValue)
		}
	case reflect.Float64:
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%g", &floatValue); err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue := value == "true" || value == "1" || value == "yes" || value == "on"
		field.SetBool(boolValue)
	case reflect.Slice:
		// Comma-separated values
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(value, ",")
			for i, v := range values {
				values[i] = strings.TrimSpace(v)
			}
			field.Set(reflect.ValueOf(values))
		}
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// validate validates the configuration
func (cm *ConfigManager) validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if config.Upload.TickInterval <= 0 {
		return fmt.Errorf("upload tick interval must be positive")
	}
	if config.Upload.MaxIncrement <= 0 || config.Upload.MaxIncrement > 100 {
		return fmt.Errorf("upload max increment must be in (0,100]")
	}
	if config.API.PollInterval <= 0 {
		config.API.PollInterval = time.Second
	}
	return nil
}

// defaultConfig returns the default configuration
func (cm *ConfigManager) defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		API: APIConfig{
			PollInterval: time.Second,
		},
		Upload: UploadConfig{
			MaxFileSizeBytes: 100 * 1024 * 1024, // 100MB
			AcceptedTypes:    []string{"*"},
			MaxBatchSize:     100,
			TickInterval:     200 * time.Millisecond,
			MaxIncrement:     15,
			RemoteBaseURL:    "https://example.com/files",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}
