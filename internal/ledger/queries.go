package ledger

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/pkg/db/models"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

// HistoryPage is one page of balance entries, newest first.
type HistoryPage struct {
	Entries    []models.BalanceTransaction `json:"entries"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

// TransactionPage is one page of a user's transactions, newest first.
type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// Balance returns the cached account. Users that never had a balance entry
// get a zero account that is not persisted.
func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return &models.Account{UserID: userID, Balance: decimal.Zero}, nil
	}
	return account, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	var before int64
	if raw := strings.TrimSpace(params.Cursor); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		before = parsed
	}

	limit := params.Size()
	rows, err := s.repo.ListBalanceEntries(ctx, userID, limit+1, before)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list balance history")
	}

	page := &HistoryPage{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		page.NextCursor = strconv.FormatInt(page.Entries[limit-1].Sequence, 10)
	}
	if page.Entries == nil {
		page.Entries = []models.BalanceTransaction{}
	}
	return page, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	rows, next, err := pagination.Collect(params, "list transactions",
		func(cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
			return s.repo.ListTransactions(ctx, userID, cursor, limit)
		},
		func(tx models.Transaction) pagination.Cursor {
			return pagination.Cursor{CreatedAt: tx.CreatedAt, ID: tx.ID}
		})
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Transactions: rows, NextCursor: next}, nil
}

func (s *service) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *service) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrTransactionNotFound
	}
	tx, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction by reference")
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *service) ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	ids, err := s.repo.ListAccountIDs(ctx, after, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list accounts")
	}
	return ids, nil
}

func (s *service) CountFrozenAccounts(ctx context.Context) (int64, error) {
	n, err := s.repo.CountFrozenAccounts(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count frozen accounts")
	}
	return n, nil
}
