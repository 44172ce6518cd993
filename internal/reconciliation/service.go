package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/devmarket/ledger-core/internal/ledger"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
)

const defaultBatchSize = 200

// Summary describes one pass over every account.
type Summary struct {
	Checked    int         `json:"checked"`
	Mismatched []uuid.UUID `json:"mismatched"`
	Failed     int         `json:"failed"`
	Frozen     int64       `json:"frozen_accounts"`
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Ledger    ledger.Service
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
	BatchSize int
}

// Service replays balance logs against cached balances.
type Service struct {
	ledger    ledger.Service
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	batchSize int
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		ledger:    params.Ledger,
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

// Run reconciles every account. A mismatch on one user does not stop the
// pass; mismatches and failures are combined into the returned error.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	var errs error
	after := uuid.Nil
	for {
		ids, err := s.ledger.ListAccountIDs(ctx, after, s.batchSize)
		if err != nil {
			return summary, multierr.Append(errs, err)
		}
		for _, userID := range ids {
			if err := ctx.Err(); err != nil {
				return summary, multierr.Append(errs, err)
			}
			summary.Checked++
			if _, err := s.ledger.Reconcile(ctx, userID); err != nil {
				if errors.Is(err, ledger.ErrBalanceMismatch) {
					summary.Mismatched = append(summary.Mismatched, userID)
				} else {
					summary.Failed++
				}
				errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
			}
		}
		if len(ids) < s.batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	frozen, err := s.ledger.CountFrozenAccounts(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		summary.Frozen = frozen
		s.metrics.SetFrozenAccounts(int(frozen))
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checked":    summary.Checked,
		"mismatched": len(summary.Mismatched),
		"failed":     summary.Failed,
		"frozen":     summary.Frozen,
	})
	s.logg.Info(logCtx, "reconciliation pass complete")
	return summary, errs
}

// ReconcileUser checks a single account. A mismatch is reported through the
// returned report, not as an error.
func (s *Service) ReconcileUser(ctx context.Context, userID uuid.UUID) (*ledger.ReconcileReport, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	report, err := s.ledger.Reconcile(ctx, userID)
	if err != nil && !errors.Is(err, ledger.ErrBalanceMismatch) {
		return nil, err
	}
	if frozen, err := s.ledger.CountFrozenAccounts(ctx); err == nil {
		s.metrics.SetFrozenAccounts(int(frozen))
	}
	return report, nil
}
