package ledger

import (
	"context"
	"testing"

	"marealta-service/internal/models"
	"marealta-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPart(t *testing.T, st *store.Memory, part models.Part) {
	t.Helper()
	require.NoError(t, st.Update(context.Background(), func(tx *store.Tx) error {
		return store.Save(tx, store.Parts, []models.Part{part})
	}))
}

func loadPart(t *testing.T, st *store.Memory, partID string) models.Part {
	t.Helper()
	var found models.Part
	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		parts, err := store.Load(tx, store.Parts)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if p.ID == partID {
				found = p
				return nil
			}
		}
		t.Fatalf("part %s not found", partID)
		return nil
	}))
	return found
}

func loadMovements(t *testing.T, st *store.Memory) []models.StockMovement {
	t.Helper()
	var movements []models.StockMovement
	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		movements, err = store.Load(tx, store.Movements)
		return err
	}))
	return movements
}

func TestReceiveWeightedAverageCost(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{
		ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 10,
		Cost: decimal.NewFromInt(50), Price: decimal.NewFromInt(80),
	})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		part, movement, err := inv.Receive(tx, "p1", 10, decimal.NewFromInt(100), "NF 123", "tester")
		require.NoError(t, err)
		assert.Equal(t, 20, part.Quantity)
		// (50*10 + 100*10) / 20 = 75
		assert.True(t, part.Cost.Equal(decimal.NewFromInt(75)), "cost = %s", part.Cost)
		assert.Equal(t, models.MovementInInvoice, movement.Type)
		assert.Equal(t, 10, movement.Quantity)
		return nil
	})
	require.NoError(t, err)

	persisted := loadPart(t, st, "p1")
	assert.Equal(t, 20, persisted.Quantity)
	assert.True(t, persisted.Cost.Equal(decimal.NewFromInt(75)))

	movements := loadMovements(t, st)
	require.Len(t, movements, 1)
	assert.Equal(t, "NF 123", movements[0].Description)
	assert.Equal(t, "tester", movements[0].User)
}

func TestReceiveAfterNegativeStock(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		receive int
		wantQty int
	}{
		{"receipt exactly offsets the deficit", -3, 3, 0},
		{"receipt smaller than the deficit", -5, 3, -2},
		{"receipt clears the deficit with surplus", -2, 10, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			seedPart(t, st, models.Part{
				ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 10,
				Cost: decimal.NewFromInt(50), Price: decimal.NewFromInt(80),
			})
			inv := NewInventory(PolicyAllow)

			err := st.Update(context.Background(), func(tx *store.Tx) error {
				_, _, err := inv.Consume(tx, "p1", 10-tt.start, "OS #1", "order-1", "tester")
				return err
			})
			require.NoError(t, err)
			require.Equal(t, tt.start, loadPart(t, st, "p1").Quantity)

			err = st.Update(context.Background(), func(tx *store.Tx) error {
				part, movement, err := inv.Receive(tx, "p1", tt.receive, decimal.NewFromInt(60), "NF 7", "tester")
				require.NoError(t, err)
				assert.Equal(t, tt.wantQty, part.Quantity)
				// a deficit carries no weight: the lot is valued at its own cost
				assert.True(t, part.Cost.Equal(decimal.NewFromInt(60)), "cost = %s", part.Cost)
				assert.Equal(t, models.MovementInInvoice, movement.Type)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 1})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		_, _, err := inv.Receive(tx, "p1", 0, decimal.NewFromInt(10), "NF", "tester")
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestConsumeDecrementsAndLogs(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 10, Cost: decimal.NewFromInt(50)})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		part, movement, err := inv.Consume(tx, "p1", 3, "OS #1 - Filtro", "order-1", "tester")
		require.NoError(t, err)
		assert.Equal(t, 7, part.Quantity)
		assert.Equal(t, models.MovementOutOS, movement.Type)
		assert.Equal(t, 3, movement.Quantity)
		assert.Equal(t, "order-1", movement.ReferenceID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 7, loadPart(t, st, "p1").Quantity)
}

func TestConsumeUnderflowRejected(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 2})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		_, _, err := inv.Consume(tx, "p1", 3, "OS #1", "order-1", "tester")
		return err
	})
	require.ErrorIs(t, err, ErrStockUnderflow)

	// nothing persisted
	assert.Equal(t, 2, loadPart(t, st, "p1").Quantity)
	assert.Empty(t, loadMovements(t, st))
}

func TestConsumeUnderflowAllowedByPolicy(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 2})
	inv := NewInventory(PolicyAllow)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		part, _, err := inv.Consume(tx, "p1", 3, "OS #1", "order-1", "tester")
		require.NoError(t, err)
		assert.Equal(t, -1, part.Quantity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, -1, loadPart(t, st, "p1").Quantity)
}

func TestConsumeUnknownPart(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 2})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		_, _, err := inv.Consume(tx, "nope", 1, "OS #1", "order-1", "tester")
		return err
	})
	assert.ErrorIs(t, err, ErrPartNotFound)
}

func TestReverseConsumptionRestoresStock(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 7})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		part, movement, err := inv.ReverseConsumption(tx, "p1", 3, "Estorno OS #1", "order-1", "tester")
		require.NoError(t, err)
		assert.Equal(t, 10, part.Quantity)
		assert.Equal(t, models.MovementReturnOS, movement.Type)
		return nil
	})
	require.NoError(t, err)
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name         string
		start        int
		counted      int
		wantType     string
		wantQuantity int
	}{
		{"count above recorded", 5, 9, models.MovementAdjustmentPlus, 4},
		{"count below recorded", 5, 2, models.MovementAdjustmentMinus, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: tt.start})
			inv := NewInventory(PolicyReject)

			err := st.Update(context.Background(), func(tx *store.Tx) error {
				part, movement, err := inv.Adjust(tx, "p1", tt.counted, "Contagem física", "tester")
				require.NoError(t, err)
				require.NotNil(t, movement)
				assert.Equal(t, tt.counted, part.Quantity)
				assert.Equal(t, tt.wantType, movement.Type)
				assert.Equal(t, tt.wantQuantity, movement.Quantity)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestAdjustNoDiffIsNoOp(t *testing.T) {
	st := store.NewMemory()
	seedPart(t, st, models.Part{ID: "p1", SKU: "S1", Name: "Filtro", Quantity: 5})
	inv := NewInventory(PolicyReject)

	err := st.Update(context.Background(), func(tx *store.Tx) error {
		part, movement, err := inv.Adjust(tx, "p1", 5, "Contagem física", "tester")
		require.NoError(t, err)
		assert.Nil(t, movement)
		assert.Equal(t, 5, part.Quantity)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, loadMovements(t, st))
}
