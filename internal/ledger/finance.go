package ledger

import (
	"errors"
	"fmt"
	"time"

	"marealta-service/internal/models"
	"marealta-service/internal/store"
	"marealta-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrTransactionNotFound indicates an unknown transaction id
	ErrTransactionNotFound = errors.New("transaction not found")
)

// annotation appended to a soft-canceled entry's description
const canceledAnnotation = " [ESTORNADA]"

// Finance is the append-only financial ledger. Entries are never removed;
// reversals soft-cancel the entry so the audit trail stays intact.
type Finance struct {
	logger *zap.Logger
}

// NewFinance creates a financial ledger
func NewFinance() *Finance {
	return &Finance{logger: util.GetLogger()}
}

// RecordIncome appends the income entry for a completed order. If a
// non-canceled income entry already exists for the order, the existing
// entry is returned unchanged instead of appending a duplicate.
func (f *Finance) RecordIncome(tx *store.Tx, orderID string, amount decimal.Decimal, description, documentNumber string) (*models.Transaction, error) {
	transactions, err := store.Load(tx, store.Transactions)
	if err != nil {
		return nil, err
	}

	if existing := findIncomeForOrder(transactions, orderID); existing != nil {
		f.logger.Info("Duplicate income guarded",
			zap.String("order_id", orderID),
			zap.String("transaction_id", existing.ID))
		return existing, nil
	}

	entry := models.Transaction{
		ID:             uuid.New().String(),
		Type:           models.TransactionIncome,
		Category:       "Serviços",
		Description:    description,
		Amount:         amount,
		Date:           time.Now().UTC(),
		Status:         models.TransactionPaid,
		OrderID:        orderID,
		DocumentNumber: documentNumber,
	}

	transactions = append(transactions, entry)
	if err := store.Save(tx, store.Transactions, transactions); err != nil {
		return nil, err
	}

	util.IncomeRecordedTotal.Inc()
	return &entry, nil
}

// RecordExpense appends an expense entry
func (f *Finance) RecordExpense(tx *store.Tx, category string, amount decimal.Decimal, description, documentNumber, status string) (*models.Transaction, error) {
	if status == "" {
		status = models.TransactionPending
	}

	transactions, err := store.Load(tx, store.Transactions)
	if err != nil {
		return nil, err
	}

	entry := models.Transaction{
		ID:             uuid.New().String(),
		Type:           models.TransactionExpense,
		Category:       category,
		Description:    description,
		Amount:         amount,
		Date:           time.Now().UTC(),
		Status:         status,
		DocumentNumber: documentNumber,
	}

	transactions = append(transactions, entry)
	if err := store.Save(tx, store.Transactions, transactions); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Cancel soft-cancels an entry: status becomes CANCELED and the
// description is annotated. Canceling an already-canceled entry is an
// idempotent no-op.
func (f *Finance) Cancel(tx *store.Tx, transactionID string) (*models.Transaction, error) {
	transactions, err := store.Load(tx, store.Transactions)
	if err != nil {
		return nil, err
	}

	for i := range transactions {
		if transactions[i].ID != transactionID {
			continue
		}
		if transactions[i].Status == models.TransactionCanceled {
			return &transactions[i], nil
		}
		transactions[i].Status = models.TransactionCanceled
		transactions[i].Description += canceledAnnotation
		if err := store.Save(tx, store.Transactions, transactions); err != nil {
			return nil, err
		}
		return &transactions[i], nil
	}

	return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
}

// IncomeForOrder returns the non-canceled income entry for an order, or
// nil when none exists.
func (f *Finance) IncomeForOrder(tx *store.Tx, orderID string) (*models.Transaction, error) {
	transactions, err := store.Load(tx, store.Transactions)
	if err != nil {
		return nil, err
	}
	return findIncomeForOrder(transactions, orderID), nil
}

func findIncomeForOrder(transactions []models.Transaction, orderID string) *models.Transaction {
	for i := range transactions {
		t := &transactions[i]
		if t.Type == models.TransactionIncome && t.OrderID == orderID && t.Status != models.TransactionCanceled {
			return t
		}
	}
	return nil
}
