package escrow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

var (
	ErrPurchaseNotFound         = pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	ErrNotPurchaseOwner         = pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can report this purchase")
	ErrPurchaseNotReportable    = pkgerrors.New(pkgerrors.CodeStateConflict, "only completed purchases can be reported")
	ErrVerificationWindowClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "verification window has closed")
	ErrReportExists             = pkgerrors.New(pkgerrors.CodeConflict, "purchase already reported")
	ErrReportNotFound           = pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	ErrReportResolved           = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "report already resolved")
	ErrInvalidResolution        = pkgerrors.New(pkgerrors.CodeValidation, "invalid report resolution")
	ErrNoSettlement             = pkgerrors.New(pkgerrors.CodeStateConflict, "purchase has no settled payment")
	ErrAlreadySettled           = pkgerrors.New(pkgerrors.CodeConflict, "purchase already settled by another payment")
)

// DefaultVerificationWindow is how long a buyer may report after settlement.
const DefaultVerificationWindow = 24 * time.Hour

// AutoVerifiedNote is stored on purchases verified by the expiry sweep.
const AutoVerifiedNote = "auto-verified after verification window"

// Service owns purchases in escrow and the dispute workflow around them.
type Service interface {
	CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error)
	AttachPaymentReference(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, reference string) error
	MarkSettled(ctx context.Context, tx *gorm.DB, purchaseID, transactionID uuid.UUID, settledAt time.Time) error
	FileReport(ctx context.Context, input FileReportInput) (*models.ProjectReport, error)
	StartInvestigation(ctx context.Context, reportID, adminID uuid.UUID, notes string) (*models.ProjectReport, error)
	ResolveReport(ctx context.Context, cmd ResolveReportCommand) (*models.ProjectReport, error)
	VerifyExpired(ctx context.Context, now time.Time) (int64, error)

	GetPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error)
	ListPurchases(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*PurchasePage, error)
	GetReport(ctx context.Context, reportID uuid.UUID) (*models.ProjectReport, error)
	ListReports(ctx context.Context, status *enums.ReportStatus, params pagination.Params) (*ReportPage, error)
}

type CreatePurchaseInput struct {
	BuyerID   uuid.UUID
	ProjectID uuid.UUID
	Amount    decimal.Decimal
}

type FileReportInput struct {
	BuyerID    uuid.UUID
	PurchaseID uuid.UUID
	Reason     string
}

// ResolveReportCommand is an admin decision on an open report.
type ResolveReportCommand struct {
	ReportID   uuid.UUID
	AdminID    uuid.UUID
	Resolution enums.ReportStatus
	Notes      string
}

type PurchasePage struct {
	Purchases  []models.Purchase `json:"purchases"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type ReportPage struct {
	Reports    []models.ProjectReport `json:"reports"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type ServiceParams struct {
	Repo               Repository
	Ledger             ledger.Service
	Logger             *logger.Logger
	VerificationWindow time.Duration
	Clock              func() time.Time
}

type service struct {
	repo   Repository
	ledger ledger.Service
	logg   *logger.Logger
	window time.Duration
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	window := params.VerificationWindow
	if window <= 0 {
		window = DefaultVerificationWindow
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:   params.Repo,
		ledger: params.Ledger,
		logg:   params.Logger,
		window: window,
		now:    clock,
	}, nil
}

func (s *service) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error) {
	if input.BuyerID == uuid.Nil || input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and project are required")
	}
	if !ledger.ValidAmount(input.Amount) {
		return nil, ledger.ErrInvalidAmount
	}
	purchase := &models.Purchase{
		BuyerID:   input.BuyerID,
		ProjectID: input.ProjectID,
		Amount:    input.Amount,
		Status:    enums.PurchaseStatusPending,
	}
	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}
	return purchase, nil
}

// AttachPaymentReference points the purchase at its latest payment attempt.
// Pass the ledger transaction when called under the buyer's lock.
func (s *service) AttachPaymentReference(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID, reference string) error {
	if err := s.repo.WithTx(tx).UpdatePurchase(ctx, purchaseID, map[string]any{"payment_reference": reference}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach payment reference")
	}
	return nil
}

// MarkSettled moves a pending purchase into escrow, records transactionID as
// its settling payment and starts the verification window. Repeating the call
// for the same transaction is a no-op; a different transaction gets
// ErrAlreadySettled.
func (s *service) MarkSettled(ctx context.Context, tx *gorm.DB, purchaseID, transactionID uuid.UUID, settledAt time.Time) error {
	repo := s.repo.WithTx(tx)
	purchase, err := repo.LockPurchase(ctx, purchaseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	if purchase == nil {
		return ErrPurchaseNotFound
	}
	reference := transactionID.String()
	if purchase.Status != enums.PurchaseStatusPending {
		if purchase.PaymentReference != nil && *purchase.PaymentReference == reference {
			return nil
		}
		return ErrAlreadySettled
	}
	settledAt = settledAt.UTC()
	deadline := settledAt.Add(s.window)
	if err := repo.UpdatePurchase(ctx, purchaseID, map[string]any{
		"status":                enums.PurchaseStatusCompleted,
		"payment_reference":     reference,
		"completed_at":          settledAt,
		"verification_deadline": deadline,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle purchase")
	}
	return nil
}

func (s *service) FileReport(ctx context.Context, input FileReportInput) (*models.ProjectReport, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	purchase, err := s.GetPurchase(ctx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != input.BuyerID {
		return nil, ErrNotPurchaseOwner
	}

	var report *models.ProjectReport
	err = s.ledger.RunForUser(ctx, purchase.BuyerID, func(tx *gorm.DB, w *ledger.Writer) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockPurchase(ctx, purchase.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
		}
		if locked == nil {
			return ErrPurchaseNotFound
		}
		if locked.Status != enums.PurchaseStatusCompleted {
			if existing, _ := repo.FindReportByPurchase(ctx, purchase.ID); existing != nil {
				return ErrReportExists
			}
			return ErrPurchaseNotReportable
		}
		if !locked.WithinVerificationWindow(s.now()) {
			return ErrVerificationWindowClosed
		}

		report = &models.ProjectReport{
			PurchaseID: purchase.ID,
			ReporterID: input.BuyerID,
			Reason:     reason,
			Status:     enums.ReportStatusPending,
		}
		if err := repo.CreateReport(ctx, report); err != nil {
			if db.IsUniqueViolation(err, "") {
				return ErrReportExists
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create report")
		}
		if err := repo.UpdatePurchase(ctx, purchase.ID, map[string]any{"status": enums.PurchaseStatusDisputed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dispute purchase")
		}

		settling, err := w.SettlingTransaction(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if settling != nil {
			if _, err := w.MarkDisputed(ctx, settling.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"purchase_id": purchase.ID.String(), "report_id": report.ID.String()})
	s.logg.Info(logCtx, "purchase reported")
	return report, nil
}

func (s *service) StartInvestigation(ctx context.Context, reportID, adminID uuid.UUID, notes string) (*models.ProjectReport, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	switch report.Status {
	case enums.ReportStatusInvestigating:
		return report, nil
	case enums.ReportStatusPending:
	default:
		return nil, ErrReportResolved
	}
	updates := map[string]any{"status": enums.ReportStatusInvestigating}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["admin_notes"] = notes
	}
	if err := s.repo.UpdateReport(ctx, reportID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update report")
	}
	return s.GetReport(ctx, reportID)
}

// ResolveReport applies an admin decision. Refunds reverse the settling
// transaction; release and dismissal close the dispute without moving money.
func (s *service) ResolveReport(ctx context.Context, cmd ResolveReportCommand) (*models.ProjectReport, error) {
	if cmd.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	if !cmd.Resolution.IsResolution() {
		return nil, ErrInvalidResolution
	}
	report, err := s.GetReport(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	purchase, err := s.GetPurchase(ctx, report.PurchaseID)
	if err != nil {
		return nil, err
	}

	err = s.ledger.RunForUser(ctx, purchase.BuyerID, func(tx *gorm.DB, w *ledger.Writer) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockReport(ctx, report.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load report")
		}
		if locked == nil {
			return ErrReportNotFound
		}
		if !locked.Status.IsOpen() {
			return ErrReportResolved
		}

		settling, err := w.SettlingTransaction(ctx, purchase.ID)
		if err != nil {
			return err
		}

		purchaseUpdates := map[string]any{}
		switch cmd.Resolution {
		case enums.ReportStatusResolvedRefund:
			if settling == nil {
				return ErrNoSettlement
			}
			description := "refund for reported purchase " + purchase.ID.String()
			if _, err := w.Reverse(ctx, settling.ID, description); err != nil && !errors.Is(err, ledger.ErrAlreadyReversed) {
				return err
			}
			purchaseUpdates["status"] = enums.PurchaseStatusRefunded
		case enums.ReportStatusResolvedRelease:
			if err := releaseDispute(ctx, w, settling); err != nil {
				return err
			}
			purchaseUpdates["status"] = enums.PurchaseStatusCompleted
			purchaseUpdates["is_verified"] = true
		case enums.ReportStatusDismissed:
			if err := releaseDispute(ctx, w, settling); err != nil {
				return err
			}
			purchaseUpdates["status"] = enums.PurchaseStatusCompleted
		}
		if err := repo.UpdatePurchase(ctx, purchase.ID, purchaseUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase")
		}

		now := s.now()
		reportUpdates := map[string]any{
			"status":      cmd.Resolution,
			"resolved_by": cmd.AdminID,
			"resolved_at": now,
		}
		if notes := strings.TrimSpace(cmd.Notes); notes != "" {
			reportUpdates["admin_notes"] = notes
		}
		if err := repo.UpdateReport(ctx, report.ID, reportUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve report")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"report_id":  report.ID.String(),
		"admin_id":   cmd.AdminID.String(),
		"resolution": cmd.Resolution.String(),
	})
	s.logg.Info(logCtx, "report resolved")
	return s.GetReport(ctx, report.ID)
}

func releaseDispute(ctx context.Context, w *ledger.Writer, settling *models.Transaction) error {
	if settling == nil || settling.Status != enums.TransactionStatusDisputed {
		return nil
	}
	_, err := w.ReleaseDispute(ctx, settling.ID)
	return err
}

func (s *service) VerifyExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.VerifyExpired(ctx, now.UTC(), AutoVerifiedNote)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify expired purchases")
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", n), "purchases auto-verified")
	}
	return n, nil
}

func (s *service) GetPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.repo.FindPurchase(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}

func (s *service) ListPurchases(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*PurchasePage, error) {
	rows, next, err := pagination.Collect(params, "list purchases",
		func(cursor *pagination.Cursor, limit int) ([]models.Purchase, error) {
			return s.repo.ListPurchasesByBuyer(ctx, buyerID, cursor, limit)
		},
		func(p models.Purchase) pagination.Cursor {
			return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
		})
	if err != nil {
		return nil, err
	}
	return &PurchasePage{Purchases: rows, NextCursor: next}, nil
}

func (s *service) GetReport(ctx context.Context, reportID uuid.UUID) (*models.ProjectReport, error) {
	report, err := s.repo.FindReport(ctx, reportID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load report")
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func (s *service) ListReports(ctx context.Context, status *enums.ReportStatus, params pagination.Params) (*ReportPage, error) {
	rows, next, err := pagination.Collect(params, "list reports",
		func(cursor *pagination.Cursor, limit int) ([]models.ProjectReport, error) {
			return s.repo.ListReports(ctx, status, cursor, limit)
		},
		func(r models.ProjectReport) pagination.Cursor {
			return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
		})
	if err != nil {
		return nil, err
	}
	return &ReportPage{Reports: rows, NextCursor: next}, nil
}
