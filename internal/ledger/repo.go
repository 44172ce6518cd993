package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

// Repository persists accounts, transactions and balance entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	LockAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal, sequence int64) error
	SetAccountFrozen(ctx context.Context, userID uuid.UUID, frozen bool, reason *string, at *time.Time) error
	ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	CountFrozenAccounts(ctx context.Context) (int64, error)

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindReversalOf(ctx context.Context, originalID uuid.UUID) (*models.Transaction, error)
	FindSettlingTransaction(ctx context.Context, purchaseID uuid.UUID) (*models.Transaction, error)
	ListPurchaseTransactions(ctx context.Context, purchaseID uuid.UUID) ([]models.Transaction, error)
	TransitionTransaction(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error)

	CreateBalanceEntry(ctx context.Context, entry *models.BalanceTransaction) error
	ListBalanceEntries(ctx context.Context, userID uuid.UUID, limit int, before int64) ([]models.BalanceTransaction, error)
	EachBalanceEntry(ctx context.Context, userID uuid.UUID, fn func(entry models.BalanceTransaction) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockAccount loads the account row FOR UPDATE, creating a zero-balance
// account on first touch.
func (r *repository) LockAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	seed := models.Account{UserID: userID, Balance: decimal.Zero}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}

	var account models.Account
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) UpdateAccountBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal, sequence int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"balance": balance, "last_sequence": sequence}).Error
}

func (r *repository) SetAccountFrozen(ctx context.Context, userID uuid.UUID, frozen bool, reason *string, at *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"frozen":        frozen,
			"frozen_reason": reason,
			"frozen_at":     at,
		}).Error
}

func (r *repository) ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.Account{})
	if after != uuid.Nil {
		query = query.Where("user_id > ?", after)
	}
	if err := query.Order("user_id ASC").Limit(limit).Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CountFrozenAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("frozen = ?", true).Count(&count).Error
	return count, err
}

func (r *repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).Where("external_reference = ?", reference))
}

func (r *repository) FindReversalOf(ctx context.Context, originalID uuid.UUID) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).
		Where("reversal_of_id = ? AND kind = ?", originalID, enums.TransactionKindRefund))
}

// FindSettlingTransaction returns the purchase transaction that paid for the
// purchase, if one reached settlement. A live settlement wins over a refunded
// duplicate.
func (r *repository) FindSettlingTransaction(ctx context.Context, purchaseID uuid.UUID) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).
		Where("purchase_id = ? AND kind = ?", purchaseID, enums.TransactionKindPurchase).
		Where("status IN ?", []enums.TransactionStatus{
			enums.TransactionStatusCompleted,
			enums.TransactionStatusDisputed,
			enums.TransactionStatusRefunded,
		}).
		Order("CASE WHEN status = '" + string(enums.TransactionStatusRefunded) + "' THEN 1 ELSE 0 END").
		Order("completed_at ASC"))
}

func (r *repository) ListPurchaseTransactions(ctx context.Context, purchaseID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("purchase_id = ? AND kind = ?", purchaseID, enums.TransactionKindPurchase).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) firstTransaction(query *gorm.DB) (*models.Transaction, error) {
	var tx models.Transaction
	if err := query.First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// TransitionTransaction moves a transaction from one status to another as a
// compare-and-swap. It reports false when the row was not in the from status.
func (r *repository) TransitionTransaction(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Keyset(cursor, limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateBalanceEntry(ctx context.Context, entry *models.BalanceTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListBalanceEntries pages a user's balance history newest first. Sequence
// numbers are per user, so entries before is the only cursor needed.
func (r *repository) ListBalanceEntries(ctx context.Context, userID uuid.UUID, limit int, before int64) ([]models.BalanceTransaction, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if before > 0 {
		query = query.Where("sequence < ?", before)
	}
	var rows []models.BalanceTransaction
	if err := query.Order("sequence DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

const replayBatchSize = 500

// EachBalanceEntry streams a user's balance entries in sequence order.
func (r *repository) EachBalanceEntry(ctx context.Context, userID uuid.UUID, fn func(entry models.BalanceTransaction) error) error {
	var after int64
	for {
		var batch []models.BalanceTransaction
		if err := r.db.WithContext(ctx).
			Where("user_id = ? AND sequence > ?", userID, after).
			Order("sequence ASC").
			Limit(replayBatchSize).
			Find(&batch).Error; err != nil {
			return err
		}
		for _, entry := range batch {
			if err := fn(entry); err != nil {
				return err
			}
		}
		if len(batch) < replayBatchSize {
			return nil
		}
		after = batch[len(batch)-1].Sequence
	}
}
