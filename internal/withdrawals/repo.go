package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.WithdrawalStatus, updates map[string]any) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status enums.WithdrawalStatus, cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error)
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

func (r *repository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repository) first(query *gorm.DB) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := query.First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// Transition is a compare-and-swap on status. It reports false when the row
// was no longer in from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.WithdrawalStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Scopes(pagination.Keyset(cursor, limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, status enums.WithdrawalStatus, cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("status = ?", status).Scopes(pagination.Keyset(cursor, limit)).Find(&rows).Error
	return rows, err
}
