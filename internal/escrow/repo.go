package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

// Repository persists purchases and their dispute reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	FindPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	UpdatePurchase(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Purchase, error)
	VerifyExpired(ctx context.Context, now time.Time, note string) (int64, error)

	CreateReport(ctx context.Context, report *models.ProjectReport) error
	FindReport(ctx context.Context, id uuid.UUID) (*models.ProjectReport, error)
	LockReport(ctx context.Context, id uuid.UUID) (*models.ProjectReport, error)
	FindReportByPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.ProjectReport, error)
	UpdateReport(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListReports(ctx context.Context, status *enums.ReportStatus, cursor *pagination.Cursor, limit int) ([]models.ProjectReport, error)
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

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return first[models.Purchase](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return first[models.Purchase](r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repository) UpdatePurchase(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Scopes(pagination.Keyset(cursor, limit)).
		Find(&rows).Error
	return rows, err
}

// VerifyExpired marks settled purchases verified once their window has
// elapsed without a report.
func (r *repository) VerifyExpired(ctx context.Context, now time.Time, note string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("status = ? AND is_verified = ?", enums.PurchaseStatusCompleted, false).
		Where("verification_deadline IS NOT NULL AND verification_deadline <= ?", now).
		Where("NOT EXISTS (SELECT 1 FROM project_reports WHERE project_reports.purchase_id = purchases.id)").
		Updates(map[string]any{
			"is_verified":        true,
			"verification_notes": note,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) CreateReport(ctx context.Context, report *models.ProjectReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindReport(ctx context.Context, id uuid.UUID) (*models.ProjectReport, error) {
	return first[models.ProjectReport](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) LockReport(ctx context.Context, id uuid.UUID) (*models.ProjectReport, error) {
	return first[models.ProjectReport](r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repository) FindReportByPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.ProjectReport, error) {
	return first[models.ProjectReport](r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID))
}

func (r *repository) UpdateReport(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.ProjectReport{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListReports(ctx context.Context, status *enums.ReportStatus, cursor *pagination.Cursor, limit int) ([]models.ProjectReport, error) {
	query := r.db.WithContext(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.ProjectReport
	err := query.Scopes(pagination.Keyset(cursor, limit)).Find(&rows).Error
	return rows, err
}

func first[T any](query *gorm.DB) (*T, error) {
	var row T
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
