package service

import (
	"context"
	"log"
	"os"

	"github.com/dropdeck/dropdeck/pkg/history"
	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/transfer"
)

// ServiceRegistry manages all service instances
type ServiceRegistry struct {
	UploadService UploadService
	StatsService  StatsService
	History       *history.Repository
	config        *ServiceConfig
	logger        *log.Logger
}

// NewServiceRegistry creates a new service registry with all services
// initialized. The history repository may be nil.
func NewServiceRegistry(files *store.FileStore, sessions *store.SessionStore, simulator *transfer.Simulator, events *history.Repository, config *ServiceConfig) *ServiceRegistry {
	if config == nil {
		config = DefaultServiceConfig()
	}
	config.Validate()

	return &ServiceRegistry{
		UploadService: NewUploadService(files, sessions, simulator, events, config),
		StatsService:  NewStatsService(sessions, config),
		History:       events,
		config:        config,
		logger:        log.New(os.Stdout, "[ServiceRegistry] ", log.LstdFlags),
	}
}

// Health checks the health of all registered services
func (r *ServiceRegistry) Health(ctx context.Context) map[string]error {
	results := make(map[string]error)
	results["upload_service"] = r.UploadService.Health(ctx)
	results["stats_service"] = r.StatsService.Health(ctx)
	return results
}

// Healthy reports whether every registered service passed its health check
func (r *ServiceRegistry) Healthy(ctx context.Context) bool {
	for _, err := range r.Health(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}
