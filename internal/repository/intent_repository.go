package repository

import (
	"context"
	"time"

	"github.com/lucifer1017/yieldforge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntentRepository defines data access for the intent read model.
type IntentRepository interface {
	Upsert(ctx context.Context, record *models.IntentRecord) error
	MarkInactive(ctx context.Context, owner string, index uint32) error
	MarkExecuted(ctx context.Context, owner string, index uint32, at time.Time) error
	FindByOwner(ctx context.Context, owner string) ([]*models.IntentRecord, error)
	FindActive(ctx context.Context, page, limit int) ([]*models.IntentRecord, int64, error)
	CreateExecution(ctx context.Context, exec *models.RebalanceExecution) error
	FindExecutionsByUser(ctx context.Context, user string, page, limit int) ([]*models.RebalanceExecution, int64, error)
}

type intentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

// Upsert writes the read-model row for (owner, intent_index). The ledger is
// the source of truth; conflicts overwrite.
func (r *intentRepository) Upsert(ctx context.Context, record *models.IntentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}, {Name: "intent_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_apy_bps", "slippage_bps", "target_protocol", "target_chain_id",
			"max_gas_price", "is_active", "last_executed", "updated_at",
		}),
	}).Create(record).Error
}

func (r *intentRepository) MarkInactive(ctx context.Context, owner string, index uint32) error {
	return r.db.WithContext(ctx).Model(&models.IntentRecord{}).
		Where("owner = ? AND intent_index = ?", owner, index).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
}

func (r *intentRepository) MarkExecuted(ctx context.Context, owner string, index uint32, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.IntentRecord{}).
		Where("owner = ? AND intent_index = ?", owner, index).
		Updates(map[string]interface{}{"last_executed": at, "updated_at": time.Now()}).Error
}

func (r *intentRepository) FindByOwner(ctx context.Context, owner string) ([]*models.IntentRecord, error) {
	var records []*models.IntentRecord
	err := r.db.WithContext(ctx).Where("owner = ?", owner).
		Order("intent_index ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *intentRepository) FindActive(ctx context.Context, page, limit int) ([]*models.IntentRecord, int64, error) {
	var records []*models.IntentRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IntentRecord{}).Where("is_active = ?", true)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *intentRepository) CreateExecution(ctx context.Context, exec *models.RebalanceExecution) error {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(exec).Error
}

func (r *intentRepository) FindExecutionsByUser(ctx context.Context, user string, page, limit int) ([]*models.RebalanceExecution, int64, error) {
	var execs []*models.RebalanceExecution
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RebalanceExecution{}).Where("\"user\" = ?", user)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("executed_at DESC").Find(&execs).Error
	if err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}
