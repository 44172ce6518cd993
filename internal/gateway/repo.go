package gateway

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/db/models"
)

// Repository persists the gateway audit log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateLog(ctx context.Context, entry *models.PaymentGatewayLog) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.PaymentGatewayLog, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateLog(ctx context.Context, entry *models.PaymentGatewayLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.PaymentGatewayLog, error) {
	var logs []models.PaymentGatewayLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
