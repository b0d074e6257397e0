package service

import (
	"context"

	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/store"
	"marealta-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinanceService exposes the financial ledger outside the order
// workflow: manual expenses and soft cancellation of entries.
type FinanceService struct {
	store   store.Store
	finance *ledger.Finance
	logger  *zap.Logger
}

// NewFinanceService creates a finance service
func NewFinanceService(st store.Store, finance *ledger.Finance) *FinanceService {
	return &FinanceService{
		store:   st,
		finance: finance,
		logger:  util.GetLogger(),
	}
}

// RecordExpense appends an expense entry to the ledger
func (s *FinanceService) RecordExpense(ctx context.Context, category string, amount decimal.Decimal, description, documentNumber, status string) (*models.Transaction, error) {
	var entry *models.Transaction
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = s.finance.RecordExpense(tx, category, amount, description, documentNumber, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Expense recorded",
		zap.String("transaction_id", entry.ID),
		zap.String("category", category),
		zap.String("amount", amount.String()))
	return entry, nil
}

// CancelTransaction soft-cancels a ledger entry
func (s *FinanceService) CancelTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var entry *models.Transaction
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = s.finance.Cancel(tx, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
