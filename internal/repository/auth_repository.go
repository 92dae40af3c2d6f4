package repository

import (
	"context"
	"time"

	"github.com/lucifer1017/yieldforge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthNonceRepository defines data access for wallet login challenges.
type AuthNonceRepository interface {
	Create(ctx context.Context, nonce *models.AuthNonce) error
	// Consume atomically marks an unused, unexpired nonce as used. Returns
	// gorm.ErrRecordNotFound when no such nonce exists.
	Consume(ctx context.Context, address, nonce string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type authNonceRepository struct {
	db *gorm.DB
}

func NewAuthNonceRepository(db *gorm.DB) AuthNonceRepository {
	return &authNonceRepository{db: db}
}

func (r *authNonceRepository) Create(ctx context.Context, nonce *models.AuthNonce) error {
	if nonce.ID == "" {
		nonce.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(nonce).Error
}

func (r *authNonceRepository) Consume(ctx context.Context, address, nonce string) error {
	result := r.db.WithContext(ctx).Model(&models.AuthNonce{}).
		Where("address = ? AND nonce = ? AND used = ? AND expires_at > ?", address, nonce, false, time.Now()).
		Update("used", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *authNonceRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.AuthNonce{})
	return result.RowsAffected, result.Error
}
