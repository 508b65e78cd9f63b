package repositories

import (
	"github.com/cacheops/cachectl/models"
	"gorm.io/gorm"
)

// RolloutRecordRepository persists and queries rollout history rows.
type RolloutRecordRepository struct {
	db *gorm.DB
}

// NewRolloutRecordRepository creates a new rollout record repository.
func NewRolloutRecordRepository(db *gorm.DB) *RolloutRecordRepository {
	return &RolloutRecordRepository{db: db}
}

// Create inserts a new rollout record.
func (r *RolloutRecordRepository) Create(record *models.RolloutRecord) error {
	return r.db.Create(record).Error
}

// ListRecent returns the most recent records for a namespace, newest
// first. An empty namespace returns records across all namespaces.
func (r *RolloutRecordRepository) ListRecent(namespace string, limit int) ([]models.RolloutRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.Order("started_at DESC").Limit(limit)
	if namespace != "" {
		query = query.Where("namespace = ?", namespace)
	}

	var records []models.RolloutRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
