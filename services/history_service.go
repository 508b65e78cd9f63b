package services

import (
	"time"

	"github.com/cacheops/cachectl/database"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/repositories"
)

// HistoryService records rollout and teardown outcomes. Recording is
// strictly optional: without a configured database every method is a
// no-op, and a write failure is logged but never fails the pipeline.
type HistoryService struct {
	repo *repositories.RolloutRecordRepository
}

// NewHistoryService creates a history service backed by the shared
// database handle, or a disabled one when history is not configured.
func NewHistoryService() *HistoryService {
	if database.DB == nil {
		return &HistoryService{}
	}
	return &HistoryService{repo: repositories.NewRolloutRecordRepository(database.DB)}
}

// Enabled reports whether history recording is configured.
func (s *HistoryService) Enabled() bool {
	return s.repo != nil
}

// Record persists one outcome row. Fire-and-forget by contract.
func (s *HistoryService) Record(record models.RolloutRecord) {
	if s.repo == nil {
		return
	}
	record.DurationMS = record.FinishedAt.Sub(record.StartedAt).Milliseconds()
	if err := s.repo.Create(&record); err != nil {
		lg := logger.WithComponent("history")
		lg.Warn().Err(err).Msg("failed to record rollout history")
	}
}

// List returns recent history rows, newest first.
func (s *HistoryService) List(namespace string, limit int) ([]models.RolloutRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListRecent(namespace, limit)
}

// NewRecord seeds a history row for an action starting now.
func NewRecord(action string, cfg models.DeploymentConfig) models.RolloutRecord {
	return models.RolloutRecord{
		Action:      action,
		Namespace:   cfg.Namespace,
		Workload:    cfg.Name,
		ClusterType: string(cfg.ClusterType),
		Replicas:    cfg.Replicas,
		Persistence: cfg.PersistenceEnabled,
		StartedAt:   time.Now(),
	}
}
