package repository

import (
	"context"
	"errors"

	"github.com/lucifer1017/yieldforge/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// LedgerEventRepository defines data access for persisted ledger events.
type LedgerEventRepository interface {
	Create(ctx context.Context, event *models.LedgerEventRecord) error
	FindBySubject(ctx context.Context, subject string, page, limit int) ([]*models.LedgerEventRecord, int64, error)
	FindByUser(ctx context.Context, user string, page, limit int) ([]*models.LedgerEventRecord, int64, error)
}

type ledgerEventRepository struct {
	db *gorm.DB
}

func NewLedgerEventRepository(db *gorm.DB) LedgerEventRepository {
	return &ledgerEventRepository{db: db}
}

// Create persists an event record. A duplicate event key is not an error:
// the same event arriving twice (NATS redelivery, process restart) is
// silently dropped.
func (r *ledgerEventRepository) Create(ctx context.Context, event *models.LedgerEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Create(event).Error
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return nil
	}
	return err
}

func (r *ledgerEventRepository) FindBySubject(ctx context.Context, subject string, page, limit int) ([]*models.LedgerEventRecord, int64, error) {
	var events []*models.LedgerEventRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.LedgerEventRecord{}).Where("subject = ?", subject)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("emitted_at DESC").Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *ledgerEventRepository) FindByUser(ctx context.Context, user string, page, limit int) ([]*models.LedgerEventRecord, int64, error) {
	var events []*models.LedgerEventRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.LedgerEventRecord{}).Where("\"user\" = ?", user)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("emitted_at DESC").Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
