package service

import (
	"context"
	"time"

	"github.com/dropdeck/dropdeck/pkg/types"
)

// BaseService provides common functionality for all services
type BaseService struct {
	startTime time.Time
}

// NewBaseService creates a new base service
func NewBaseService() *BaseService {
	return &BaseService{
		startTime: time.Now(),
	}
}

// GetUptime returns the service uptime
func (s *BaseService) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// ServiceConfig provides configuration for services
type ServiceConfig struct {
	MaxBatchSize  int               `json:"max_batch_size"`
	Timeout       time.Duration     `json:"timeout"`
	EnableLogging bool              `json:"enable_logging"`
	Constraints   types.Constraints `json:"constraints"`
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxBatchSize:  100,
		Timeout:       10 * time.Minute,
		EnableLogging: true,
		Constraints: types.Constraints{
			MaxFileSizeBytes: 100 * 1024 * 1024, // 100MB
		},
	}
}

// Validate validates the service configuration, repairing out-of-range
// values rather than failing
func (c *ServiceConfig) Validate() error {
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > 10000 {
		c.MaxBatchSize = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	return nil
}

// Service interface defines common service methods
type Service interface {
	Health(ctx context.Context) error
	GetConfig() *ServiceConfig
	SetConfig(config *ServiceConfig) error
}

// Listener receives upload lifecycle events. Presentation layers (the
// websocket hub, the CLI) implement this to observe transfers without
// touching the stores.
type Listener interface {
	// OnFileProgress is called for every progress tick and status change.
	OnFileProgress(event types.ProgressEvent)
	// OnFileFinished is called exactly once per file with its terminal
	// state; err is non-nil when the transfer failed.
	OnFileFinished(event types.ProgressEvent, err error)
}

// BatchRejection records a file turned away at submission time
type BatchRejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BatchResult reports the outcome of a batch submission
type BatchResult struct {
	SessionID string             `json:"session_id"`
	Accepted  []types.FileRecord `json:"accepted"`
	Rejected  []BatchRejection   `json:"rejected,omitempty"`
}

// UploadService defines batch submission and file tracking operations
type UploadService interface {
	Service
	SubmitBatch(ctx context.Context, files []types.FileMeta) (*BatchResult, error)
	GetFile(id string) (types.FileRecord, error)
	ListFiles() []types.FileRecord
	ListSessionFiles(sessionID string) []types.FileRecord
	RemoveFile(id string) (types.FileRecord, error)
	GetSession(id string) (types.UploadSession, error)
	ListSessions() []types.UploadSession
	DeleteSession(id string) (types.UploadSession, error)
	AddListener(listener Listener)
	Wait()
	Shutdown()
}

// StatsService defines statistics operations
type StatsService interface {
	Service
	GetGlobalStats(ctx context.Context) (types.GlobalStats, error)
}
