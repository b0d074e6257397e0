package store

import (
	"context"
	"errors"
	"testing"

	"marealta-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOnFirstAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var parts []models.Part
	err := m.View(ctx, func(tx *Tx) error {
		var err error
		parts, err = Load(tx, Parts)
		return err
	})
	require.NoError(t, err)
	assert.NotEmpty(t, parts, "first access should yield the default seed")

	// Mutating the returned slice must not leak into later reads
	parts[0].Quantity = -999
	var again []models.Part
	err = m.View(ctx, func(tx *Tx) error {
		var err error
		again, err = Load(tx, Parts)
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, -999, again[0].Quantity)
}

func TestWholeCollectionReplace(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Update(ctx, func(tx *Tx) error {
		return Save(tx, Parts, []models.Part{
			{ID: "p1", SKU: "SKU-1", Name: "Impeller", Quantity: 3, Cost: decimal.NewFromInt(10), Price: decimal.NewFromInt(20)},
		})
	})
	require.NoError(t, err)

	err = m.Update(ctx, func(tx *Tx) error {
		return Save(tx, Parts, []models.Part{
			{ID: "p2", SKU: "SKU-2", Name: "Anode", Quantity: 8, Cost: decimal.NewFromInt(5), Price: decimal.NewFromInt(12)},
		})
	})
	require.NoError(t, err)

	var parts []models.Part
	err = m.View(ctx, func(tx *Tx) error {
		var err error
		parts, err = Load(tx, Parts)
		return err
	})
	require.NoError(t, err)
	require.Len(t, parts, 1, "set is a total replace, not a merge")
	assert.Equal(t, "p2", parts[0].ID)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, func(tx *Tx) error {
		return Save(tx, Orders, []models.ServiceOrder{{ID: "o1", Status: models.OrderStatusPending}})
	}))

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx *Tx) error {
		if err := Save(tx, Orders, []models.ServiceOrder{{ID: "o2"}}); err != nil {
			return err
		}
		if err := Save(tx, Movements, []models.StockMovement{{ID: "m1"}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = m.View(ctx, func(tx *Tx) error {
		orders, err := Load(tx, Orders)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "o1", orders[0].ID)

		movements, err := Load(tx, Movements)
		require.NoError(t, err)
		assert.Empty(t, movements, "staged writes must not survive a failed update")
		return nil
	})
	require.NoError(t, err)
}

func TestTxReadsOwnWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Update(ctx, func(tx *Tx) error {
		if err := Save(tx, Clients, []models.Client{{ID: "c1", Name: "Ana"}}); err != nil {
			return err
		}
		clients, err := Load(tx, Clients)
		if err != nil {
			return err
		}
		require.Len(t, clients, 1)
		assert.Equal(t, "Ana", clients[0].Name)
		return nil
	})
	require.NoError(t, err)
}

func TestViewRejectsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.View(ctx, func(tx *Tx) error {
		return Save(tx, Clients, []models.Client{{ID: "c1"}})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestNextOrderNumber(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var first, second int
	require.NoError(t, m.Update(ctx, func(tx *Tx) error {
		var err error
		first, err = NextOrderNumber(tx)
		return err
	}))
	require.NoError(t, m.Update(ctx, func(tx *Tx) error {
		var err error
		second, err = NextOrderNumber(tx)
		return err
	}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestNextOrderNumberNotAdvancedOnRollback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx *Tx) error {
		if _, err := NextOrderNumber(tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, m.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = NextOrderNumber(tx)
		return err
	}))
	assert.Equal(t, 1, n)
}
