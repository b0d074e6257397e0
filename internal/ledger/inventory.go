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
	// ErrPartNotFound indicates an unknown part id
	ErrPartNotFound = errors.New("part not found")

	// ErrStockUnderflow indicates a consumption that would drive a
	// part's quantity below zero under the reject policy
	ErrStockUnderflow = errors.New("insufficient stock")

	// ErrInvalidQuantity indicates a non-positive movement quantity
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Negative-stock policies
const (
	PolicyReject = "reject"
	PolicyAllow  = "allow"
)

// Inventory keeps part quantities and weighted-average costs consistent
// with every physical movement, appending one immutable StockMovement per
// change. All operations run inside the caller's store transaction, so a
// batch of movements commits or aborts as a unit.
type Inventory struct {
	negativeStockPolicy string
	logger              *zap.Logger
}

// NewInventory creates an inventory ledger with the given negative-stock
// policy (PolicyReject or PolicyAllow).
func NewInventory(negativeStockPolicy string) *Inventory {
	return &Inventory{
		negativeStockPolicy: negativeStockPolicy,
		logger:              util.GetLogger(),
	}
}

// Receive records a stock receipt and recomputes the part's cost as the
// weighted average of the existing stock and the received lot.
func (inv *Inventory) Receive(tx *store.Tx, partID string, quantity int, unitCost decimal.Decimal, reason, user string) (*models.Part, *models.StockMovement, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: receive %d", ErrInvalidQuantity, quantity)
	}

	return inv.apply(tx, partID, func(part *models.Part) (*models.StockMovement, error) {
		// Non-positive on-hand (possible under the allow policy) carries
		// no weight in the average: the lot is valued at its own cost.
		if part.Quantity <= 0 {
			part.Cost = unitCost
		} else {
			oldQty := decimal.NewFromInt(int64(part.Quantity))
			newQty := decimal.NewFromInt(int64(quantity))
			totalQty := oldQty.Add(newQty)
			part.Cost = part.Cost.Mul(oldQty).Add(unitCost.Mul(newQty)).Div(totalQty).Round(4)
		}
		part.Quantity += quantity

		return &models.StockMovement{
			ID:          uuid.New().String(),
			PartID:      part.ID,
			Type:        models.MovementInInvoice,
			Quantity:    quantity,
			Date:        time.Now().UTC(),
			Description: reason,
			User:        user,
		}, nil
	})
}

// Consume decrements a part's quantity for a service order. Under the
// reject policy a consumption below zero fails with ErrStockUnderflow;
// under the allow policy it proceeds with a warning, preserving the
// source system's tolerance.
func (inv *Inventory) Consume(tx *store.Tx, partID string, quantity int, reason, referenceID, user string) (*models.Part, *models.StockMovement, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: consume %d", ErrInvalidQuantity, quantity)
	}

	return inv.apply(tx, partID, func(part *models.Part) (*models.StockMovement, error) {
		if part.Quantity < quantity {
			if inv.negativeStockPolicy == PolicyReject {
				return nil, fmt.Errorf("%w: part %s has %d, requested %d",
					ErrStockUnderflow, part.ID, part.Quantity, quantity)
			}
			util.StockUnderflowTotal.Inc()
			inv.logger.Warn("Consuming below zero stock",
				zap.String("part_id", part.ID),
				zap.Int("on_hand", part.Quantity),
				zap.Int("requested", quantity))
		}
		part.Quantity -= quantity

		return &models.StockMovement{
			ID:          uuid.New().String(),
			PartID:      part.ID,
			Type:        models.MovementOutOS,
			Quantity:    quantity,
			Date:        time.Now().UTC(),
			ReferenceID: referenceID,
			Description: reason,
			User:        user,
		}, nil
	})
}

// ReverseConsumption restores quantity consumed by an order, appending a
// RETURN_OS movement. Used only by order reopening.
func (inv *Inventory) ReverseConsumption(tx *store.Tx, partID string, quantity int, reason, referenceID, user string) (*models.Part, *models.StockMovement, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: reverse %d", ErrInvalidQuantity, quantity)
	}

	return inv.apply(tx, partID, func(part *models.Part) (*models.StockMovement, error) {
		part.Quantity += quantity

		return &models.StockMovement{
			ID:          uuid.New().String(),
			PartID:      part.ID,
			Type:        models.MovementReturnOS,
			Quantity:    quantity,
			Date:        time.Now().UTC(),
			ReferenceID: referenceID,
			Description: reason,
			User:        user,
		}, nil
	})
}

// Adjust sets a part's quantity to the counted value, recording the
// signed difference as an adjustment movement. A zero difference records
// nothing.
func (inv *Inventory) Adjust(tx *store.Tx, partID string, newQuantity int, reason, user string) (*models.Part, *models.StockMovement, error) {
	return inv.apply(tx, partID, func(part *models.Part) (*models.StockMovement, error) {
		diff := newQuantity - part.Quantity
		if diff == 0 {
			return nil, nil
		}

		movementType := models.MovementAdjustmentPlus
		magnitude := diff
		if diff < 0 {
			movementType = models.MovementAdjustmentMinus
			magnitude = -diff
		}
		part.Quantity = newQuantity

		return &models.StockMovement{
			ID:          uuid.New().String(),
			PartID:      part.ID,
			Type:        movementType,
			Quantity:    magnitude,
			Date:        time.Now().UTC(),
			Description: reason,
			User:        user,
		}, nil
	})
}

// apply locates the part, runs mutate, and stages the updated parts and
// movements collections. mutate returning a nil movement means no-op.
func (inv *Inventory) apply(tx *store.Tx, partID string, mutate func(part *models.Part) (*models.StockMovement, error)) (*models.Part, *models.StockMovement, error) {
	parts, err := store.Load(tx, store.Parts)
	if err != nil {
		return nil, nil, err
	}

	idx := -1
	for i := range parts {
		if parts[i].ID == partID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, fmt.Errorf("%w: %s", ErrPartNotFound, partID)
	}

	movement, err := mutate(&parts[idx])
	if err != nil {
		return nil, nil, err
	}
	if movement == nil {
		return &parts[idx], nil, nil
	}

	if err := store.Save(tx, store.Parts, parts); err != nil {
		return nil, nil, err
	}

	movements, err := store.Load(tx, store.Movements)
	if err != nil {
		return nil, nil, err
	}
	movements = append(movements, *movement)
	if err := store.Save(tx, store.Movements, movements); err != nil {
		return nil, nil, err
	}

	util.StockMovementsTotal.WithLabelValues(movement.Type).Inc()
	return &parts[idx], movement, nil
}
