package ledger

import (
	"context"
	"strings"
	"testing"

	"marealta-service/internal/models"
	"marealta-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTransactions(t *testing.T, st *store.Memory) []models.Transaction {
	t.Helper()
	var transactions []models.Transaction
	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		transactions, err = store.Load(tx, store.Transactions)
		return err
	}))
	return transactions
}

func TestRecordIncome(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionIncome, entry.Type)
		assert.Equal(t, models.TransactionPaid, entry.Status)
		assert.Equal(t, "order-1", entry.OrderID)
		assert.Equal(t, "NFS-1", entry.DocumentNumber)
		return nil
	})
	require.NoError(t, err)

	transactions := loadTransactions(t, st)
	require.Len(t, transactions, 1)
	assert.True(t, transactions[0].Amount.Equal(decimal.NewFromInt(240)))
}

func TestRecordIncomeDuplicateGuard(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()
	ctx := context.Background()

	var firstID string
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		require.NoError(t, err)
		firstID = entry.ID
		return nil
	}))

	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(999), "Receita OS #1", "NFS-1")
		require.NoError(t, err)
		assert.Equal(t, firstID, entry.ID, "guard must return the existing entry")
		return nil
	}))

	assert.Len(t, loadTransactions(t, st), 1)
}

func TestRecordIncomeAfterCancellation(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()
	ctx := context.Background()

	var firstID string
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		if err != nil {
			return err
		}
		firstID = entry.ID
		_, err = fin.Cancel(tx, firstID)
		return err
	}))

	// a canceled entry no longer blocks a new income for the order
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		require.NoError(t, err)
		assert.NotEqual(t, firstID, entry.ID)
		return nil
	}))

	assert.Len(t, loadTransactions(t, st), 2)
}

func TestCancelAnnotatesDescription(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()
	ctx := context.Background()

	var id string
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		if err != nil {
			return err
		}
		id = entry.ID
		return nil
	}))

	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.Cancel(tx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCanceled, entry.Status)
		assert.True(t, strings.HasSuffix(entry.Description, canceledAnnotation))
		return nil
	}))
}

func TestCancelIdempotent(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()
	ctx := context.Background()

	var id string
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.RecordIncome(tx, "order-1", decimal.NewFromInt(240), "Receita OS #1", "NFS-1")
		if err != nil {
			return err
		}
		id = entry.ID
		_, err = fin.Cancel(tx, id)
		return err
	}))

	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		entry, err := fin.Cancel(tx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCanceled, entry.Status)
		// no double annotation
		assert.Equal(t, 1, strings.Count(entry.Description, canceledAnnotation))
		return nil
	}))
}

func TestCancelUnknownTransaction(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		_, err := fin.Cancel(tx, "nope")
		return err
	})
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRecordExpenseDefaultsToPending(t *testing.T) {
	st := store.NewMemory()
	fin := NewFinance()

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		entry, err := fin.RecordExpense(tx, "Fornecedores", decimal.NewFromInt(130), "Peças motor", "NF 42", "")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionExpense, entry.Type)
		assert.Equal(t, models.TransactionPending, entry.Status)
		return nil
	})
	require.NoError(t, err)
}
