package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/types"
)

// StatsServiceImpl implements StatsService. Statistics are a pure
// function of the session store at call time: no caching, no side
// effects, safe to poll on any schedule. Reads are not isolated from
// concurrent writes; the result is a best-effort snapshot, which is all
// a monitoring dashboard needs.
type StatsServiceImpl struct {
	*BaseService
	sessions *store.SessionStore
	logger   *log.Logger

	configMu sync.RWMutex
	config   *ServiceConfig
}

// NewStatsService creates a new stats service instance
func NewStatsService(sessions *store.SessionStore, config *ServiceConfig) *StatsServiceImpl {
	if config == nil {
		config = DefaultServiceConfig()
	}
	config.Validate()

	return &StatsServiceImpl{
		BaseService: NewBaseService(),
		sessions:    sessions,
		config:      config,
		logger:      log.New(os.Stdout, "[StatsService] ", log.LstdFlags),
	}
}

// Health checks the health of the stats service
func (s *StatsServiceImpl) Health(ctx context.Context) error {
	if s.sessions == nil {
		return fmt.Errorf("session store not available")
	}
	return nil
}

// GetConfig returns the current service configuration
func (s *StatsServiceImpl) GetConfig() *ServiceConfig {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// SetConfig updates the service configuration
func (s *StatsServiceImpl) SetConfig(config *ServiceConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config = config
	return nil
}

// GetGlobalStats scans all sessions and derives the dashboard aggregate.
// Sessions are partitioned into active (uploaded < total) and completed
// (uploaded >= total). CompletedFiles counts the files of fully completed
// sessions only, never individual finished files inside a still-active
// session; the blended speed is the arithmetic mean over active sessions.
func (s *StatsServiceImpl) GetGlobalStats(ctx context.Context) (types.GlobalStats, error) {
	if err := ctx.Err(); err != nil {
		return types.GlobalStats{}, err
	}

	var stats types.GlobalStats
	var activeSpeedSum float64

	for _, session := range s.sessions.List() {
		stats.TotalFiles += session.TotalFiles
		stats.TotalSizeBytes += session.TotalSizeBytes
		stats.UploadedSizeBytes += session.UploadedSizeBytes

		if session.Completed() {
			stats.CompletedSessions++
			stats.CompletedFiles += session.TotalFiles
		} else {
			stats.ActiveSessions++
			activeSpeedSum += session.AverageSpeedBytesSec
		}
	}

	if stats.ActiveSessions > 0 {
		stats.AverageSpeedBytesSec = activeSpeedSum / float64(stats.ActiveSessions)
	}

	return stats, nil
}
