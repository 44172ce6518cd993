package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/db/models"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

// ReconcileReport compares a cached balance with a replay of its balance log.
type ReconcileReport struct {
	UserID   uuid.UUID       `json:"user_id"`
	Cached   decimal.Decimal `json:"cached_balance"`
	Replayed decimal.Decimal `json:"replayed_balance"`
	Entries  int             `json:"entries"`
	// BrokenAt is the first sequence whose balance_before does not continue
	// the previous entry, if any.
	BrokenAt *int64 `json:"broken_at,omitempty"`
	Frozen   bool   `json:"frozen"`
}

// Matches reports whether the cached balance and the log agree.
func (r ReconcileReport) Matches() bool {
	return r.BrokenAt == nil && r.Cached.Equal(r.Replayed)
}

// replay folds the balance log for userID in sequence order.
func replay(ctx context.Context, repo Repository, userID uuid.UUID) (decimal.Decimal, int, *int64, error) {
	total := decimal.Zero
	count := 0
	var broken *int64
	err := repo.EachBalanceEntry(ctx, userID, func(entry models.BalanceTransaction) error {
		if broken == nil && !entry.BalanceBefore.Equal(total) {
			seq := entry.Sequence
			broken = &seq
		}
		total = total.Add(entry.Signed())
		count++
		return nil
	})
	return total, count, broken, err
}

func (s *service) ReplayBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total, _, _, err := replay(ctx, s.repo, userID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay balance log")
	}
	return total, nil
}

// Reconcile replays the balance log under the user lock. On mismatch the
// account is frozen, the freeze is committed and ErrBalanceMismatch is
// returned with the report.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileReport, error) {
	report := &ReconcileReport{UserID: userID}
	err := s.RunForUser(ctx, userID, func(_ *gorm.DB, w *Writer) error {
		account, err := w.repo.FindAccount(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
		}
		if account != nil {
			report.Cached = account.Balance
			report.Frozen = account.Frozen
		}

		total, count, broken, err := replay(ctx, w.repo, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay balance log")
		}
		report.Replayed = total
		report.Entries = count
		report.BrokenAt = broken

		if report.Matches() || account == nil || account.Frozen {
			return nil
		}
		reason := fmt.Sprintf("reconciliation mismatch: cached %s, replayed %s", report.Cached.StringFixed(2), total.StringFixed(2))
		now := s.now()
		if err := w.repo.SetAccountFrozen(ctx, userID, true, &reason, &now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze account")
		}
		report.Frozen = true
		return nil
	})
	if err != nil {
		s.metrics.Observe("reconcile", err)
		return nil, err
	}
	if !report.Matches() {
		s.metrics.IncMismatch()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":  userID.String(),
			"cached":   report.Cached.StringFixed(2),
			"replayed": report.Replayed.StringFixed(2),
			"entries":  report.Entries,
		})
		s.logg.Error(logCtx, "balance reconciliation mismatch", ErrBalanceMismatch)
		s.metrics.Observe("reconcile", ErrBalanceMismatch)
		return report, ErrBalanceMismatch
	}
	s.metrics.Observe("reconcile", nil)
	return report, nil
}

// Unfreeze lifts a freeze once the cached balance agrees with the log again.
func (s *service) Unfreeze(ctx context.Context, userID, adminID uuid.UUID) error {
	if adminID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	err := s.RunForUser(ctx, userID, func(_ *gorm.DB, w *Writer) error {
		account, err := w.repo.FindAccount(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		if !account.Frozen {
			return nil
		}
		total, _, broken, err := replay(ctx, w.repo, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay balance log")
		}
		if broken != nil || !total.Equal(account.Balance) {
			return ErrBalanceMismatch
		}
		return w.repo.SetAccountFrozen(ctx, userID, false, nil, nil)
	})
	s.metrics.Observe("unfreeze", err)
	if err == nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "admin_id": adminID.String()})
		s.logg.Info(logCtx, "account unfrozen")
	}
	return err
}
