package service

import (
	"context"

	"marealta-service/internal/broker"
	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/redisclient"
	"marealta-service/internal/store"
	"marealta-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService exposes stock receipts and physical-count adjustments
// outside the order workflow. Each call is one store Update: the part
// update and its movement commit together.
type InventoryService struct {
	store          store.Store
	redis          *redisclient.Client
	inventory      *ledger.Inventory
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewInventoryService creates an inventory service
func NewInventoryService(
	st store.Store,
	redis *redisclient.Client,
	inventory *ledger.Inventory,
	eventPublisher *broker.EventPublisher,
) *InventoryService {
	return &InventoryService{
		store:          st,
		redis:          redis,
		inventory:      inventory,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// Receive books a stock receipt against a part (invoice entry)
func (s *InventoryService) Receive(ctx context.Context, partID string, quantity int, unitCost decimal.Decimal, reason, user string) (*models.Part, *models.StockMovement, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Receive")
	defer span.End()

	var (
		part     models.Part
		movement models.StockMovement
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		p, m, err := s.inventory.Receive(tx, partID, quantity, unitCost, reason, user)
		if err != nil {
			return err
		}
		part, movement = *p, *m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.afterMovement(ctx, part, movement)
	return &part, &movement, nil
}

// Adjust reconciles a part's quantity with a physical count. A count
// equal to the recorded quantity records nothing.
func (s *InventoryService) Adjust(ctx context.Context, partID string, newQuantity int, reason, user string) (*models.Part, *models.StockMovement, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Adjust")
	defer span.End()

	var (
		part     models.Part
		movement *models.StockMovement
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		p, m, err := s.inventory.Adjust(tx, partID, newQuantity, reason, user)
		if err != nil {
			return err
		}
		part = *p
		movement = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if movement != nil {
		s.afterMovement(ctx, part, *movement)
	}
	return &part, movement, nil
}

func (s *InventoryService) afterMovement(ctx context.Context, part models.Part, movement models.StockMovement) {
	if s.redis != nil {
		if err := s.redis.CachePartQuantity(ctx, part.ID, part.Quantity); err != nil {
			s.logger.Warn("Failed to refresh part quantity cache",
				zap.String("part_id", part.ID),
				zap.Error(err))
		}
	}
	if s.eventPublisher == nil {
		return
	}
	event := &models.StockMovementRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeStockMovementRecorded),
		MovementID:    movement.ID,
		PartID:        part.ID,
		PartName:      part.Name,
		MovementType:  movement.Type,
		Quantity:      movement.Quantity,
		QuantityAfter: part.Quantity,
		MinStock:      part.MinStock,
		ReferenceID:   movement.ReferenceID,
	}
	if err := s.eventPublisher.PublishStockMovement(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockMovementRecorded event", zap.Error(err))
	}
}
