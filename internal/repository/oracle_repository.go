package repository

import (
	"context"

	"github.com/lucifer1017/yieldforge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PriceSnapshotRepository defines data access for cached oracle readings.
type PriceSnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.PriceSnapshot) error
	FindLatest(ctx context.Context, feedID string) (*models.PriceSnapshot, error)
	FindByFeed(ctx context.Context, feedID string, page, limit int) ([]*models.PriceSnapshot, int64, error)
}

type priceSnapshotRepository struct {
	db *gorm.DB
}

func NewPriceSnapshotRepository(db *gorm.DB) PriceSnapshotRepository {
	return &priceSnapshotRepository{db: db}
}

func (r *priceSnapshotRepository) Create(ctx context.Context, snapshot *models.PriceSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *priceSnapshotRepository) FindLatest(ctx context.Context, feedID string) (*models.PriceSnapshot, error) {
	var snapshot models.PriceSnapshot
	err := r.db.WithContext(ctx).Where("feed_id = ?", feedID).
		Order("publish_time DESC").First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *priceSnapshotRepository) FindByFeed(ctx context.Context, feedID string, page, limit int) ([]*models.PriceSnapshot, int64, error) {
	var snapshots []*models.PriceSnapshot
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PriceSnapshot{}).Where("feed_id = ?", feedID)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("publish_time DESC").Find(&snapshots).Error
	if err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}
