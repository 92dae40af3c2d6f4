package repository

import (
	"context"
	"time"

	"github.com/lucifer1017/yieldforge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BridgeOperationRepository defines data access for the bridge read model.
type BridgeOperationRepository interface {
	Upsert(ctx context.Context, record *models.BridgeOperationRecord) error
	MarkExecuted(ctx context.Context, operationKey string, at time.Time) error
	FindByKey(ctx context.Context, operationKey string) (*models.BridgeOperationRecord, error)
	FindByUser(ctx context.Context, user string, page, limit int) ([]*models.BridgeOperationRecord, int64, error)
	FindPending(ctx context.Context, limit int) ([]*models.BridgeOperationRecord, error)
}

type bridgeOperationRepository struct {
	db *gorm.DB
}

func NewBridgeOperationRepository(db *gorm.DB) BridgeOperationRepository {
	return &bridgeOperationRepository{db: db}
}

// Upsert writes the read-model row for an operation key. A retry of an
// identical unexecuted operation refreshes the same row, matching the
// ledger's content-hash keying.
func (r *bridgeOperationRepository) Upsert(ctx context.Context, record *models.BridgeOperationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "operation_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"executed", "initiated_at", "executed_at", "updated_at",
		}),
	}).Create(record).Error
}

func (r *bridgeOperationRepository) MarkExecuted(ctx context.Context, operationKey string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BridgeOperationRecord{}).
		Where("operation_key = ?", operationKey).
		Updates(map[string]interface{}{"executed": true, "executed_at": at, "updated_at": time.Now()}).Error
}

func (r *bridgeOperationRepository) FindByKey(ctx context.Context, operationKey string) (*models.BridgeOperationRecord, error) {
	var record models.BridgeOperationRecord
	err := r.db.WithContext(ctx).Where("operation_key = ?", operationKey).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *bridgeOperationRepository) FindByUser(ctx context.Context, user string, page, limit int) ([]*models.BridgeOperationRecord, int64, error) {
	var records []*models.BridgeOperationRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.BridgeOperationRecord{}).Where("\"user\" = ?", user)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("initiated_at DESC").Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *bridgeOperationRepository) FindPending(ctx context.Context, limit int) ([]*models.BridgeOperationRecord, error) {
	var records []*models.BridgeOperationRecord
	err := r.db.WithContext(ctx).Where("executed = ?", false).
		Order("initiated_at ASC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
