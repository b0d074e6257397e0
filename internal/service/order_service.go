package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marealta-service/internal/broker"
	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/redisclient"
	"marealta-service/internal/store"
	"marealta-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrOrderNotFound indicates an unknown order id
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderLocked indicates a mutation attempted against an order in
	// a terminal state
	ErrOrderLocked = errors.New("order is locked")

	// ErrItemNotFound indicates an unknown item id on an order
	ErrItemNotFound = errors.New("order item not found")

	// ErrValidation indicates malformed input
	ErrValidation = errors.New("validation failed")
)

// OrderService orchestrates the service-order lifecycle. Completion and
// reopening are the transactional operations: every stock deduction, the
// income ledger entry and the status change are staged in one store
// Update and commit together or not at all.
type OrderService struct {
	store             store.Store
	redis             *redisclient.Client
	inventory         *ledger.Inventory
	finance           *ledger.Finance
	eventPublisher    *broker.EventPublisher
	strictPartLinking bool
	logger            *zap.Logger
}

// NewOrderService creates a new order service. redis and eventPublisher
// may be nil; the workflow then runs without the distributed lock and
// without post-commit events.
func NewOrderService(
	st store.Store,
	redis *redisclient.Client,
	inventory *ledger.Inventory,
	finance *ledger.Finance,
	eventPublisher *broker.EventPublisher,
	strictPartLinking bool,
) *OrderService {
	return &OrderService{
		store:             st,
		redis:             redis,
		inventory:         inventory,
		finance:           finance,
		eventPublisher:    eventPublisher,
		strictPartLinking: strictPartLinking,
		logger:            util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to open a service order
type CreateOrderRequest struct {
	BoatID            string     `json:"boat_id" binding:"required"`
	Description       string     `json:"description" binding:"required"`
	EstimatedDuration int        `json:"estimated_duration,omitempty"`
	Requester         string     `json:"requester,omitempty"`
	TechnicianName    string     `json:"technician_name,omitempty"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
}

// AddItemRequest represents a line to add to an order
type AddItemRequest struct {
	Type        string           `json:"type" binding:"required"`
	Description string           `json:"description"`
	PartID      string           `json:"part_id,omitempty"`
	Quantity    int              `json:"quantity" binding:"required,min=1"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// Create opens a new order in PENDING with an empty item list
func (s *OrderService) Create(ctx context.Context, req *CreateOrderRequest) (*models.ServiceOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Create")
	defer span.End()

	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if req.BoatID == "" {
		return nil, fmt.Errorf("%w: boat_id is required", ErrValidation)
	}

	var created models.ServiceOrder
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		boats, err := store.Load(tx, store.Boats)
		if err != nil {
			return err
		}
		known := false
		for i := range boats {
			if boats[i].ID == req.BoatID {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: boat %s does not exist", ErrValidation, req.BoatID)
		}

		number, err := store.NextOrderNumber(tx)
		if err != nil {
			return err
		}

		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}

		created = models.ServiceOrder{
			ID:                uuid.New().String(),
			Number:            number,
			BoatID:            req.BoatID,
			Description:       req.Description,
			Status:            models.OrderStatusPending,
			Items:             []models.ServiceItem{},
			TotalValue:        decimal.Zero,
			CreatedAt:         time.Now().UTC(),
			Requester:         req.Requester,
			TechnicianName:    req.TechnicianName,
			ScheduledAt:       req.ScheduledAt,
			EstimatedDuration: req.EstimatedDuration,
		}

		orders = append(orders, created)
		return store.Save(tx, store.Orders, orders)
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("create", failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Service order created",
		zap.String("order_id", created.ID),
		zap.Int("number", created.Number),
		zap.String("boat_id", created.BoatID))
	return &created, nil
}

// Get retrieves an order by id
func (s *OrderService) Get(ctx context.Context, orderID string) (*models.ServiceOrder, error) {
	var found *models.ServiceOrder
	err := s.store.View(ctx, func(tx *store.Tx) error {
		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].ID == orderID {
				found = &orders[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List retrieves all orders
func (s *OrderService) List(ctx context.Context) ([]models.ServiceOrder, error) {
	var orders []models.ServiceOrder
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = store.Load(tx, store.Orders)
		return err
	})
	return orders, err
}

// AddItem appends a line to an unlocked order. PART lines with a linked
// part snapshot the part's current price and cost; later catalog changes
// never alter the order retroactively.
func (s *OrderService) AddItem(ctx context.Context, orderID string, req *AddItemRequest) (*models.ServiceOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AddItem")
	defer span.End()

	if req.Type != models.ItemTypePart && req.Type != models.ItemTypeLabor {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrValidation, req.Type)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	return s.mutateOrder(ctx, orderID, func(tx *store.Tx, order *models.ServiceOrder) error {
		item := models.ServiceItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			Type:        req.Type,
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitCost:    decimal.Zero,
		}

		if req.Type == models.ItemTypePart && req.PartID != "" {
			parts, err := store.Load(tx, store.Parts)
			if err != nil {
				return err
			}
			var part *models.Part
			for i := range parts {
				if parts[i].ID == req.PartID {
					part = &parts[i]
					break
				}
			}
			if part == nil {
				return fmt.Errorf("%w: %s", ledger.ErrPartNotFound, req.PartID)
			}
			item.PartID = part.ID
			item.UnitPrice = part.Price
			item.UnitCost = part.Cost
			if item.Description == "" {
				item.Description = part.Name
			}
		}

		if req.UnitPrice != nil {
			item.UnitPrice = *req.UnitPrice
		}
		if item.Description == "" {
			return fmt.Errorf("%w: item description is required", ErrValidation)
		}

		item.Total = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Items = append(order.Items, item)
		order.TotalValue = sumItems(order.Items)
		return nil
	})
}

// EditItem changes the quantity and unit price of an existing line
func (s *OrderService) EditItem(ctx context.Context, orderID, itemID string, quantity int, unitPrice decimal.Decimal) (*models.ServiceOrder, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	return s.mutateOrder(ctx, orderID, func(tx *store.Tx, order *models.ServiceOrder) error {
		for i := range order.Items {
			if order.Items[i].ID != itemID {
				continue
			}
			order.Items[i].Quantity = quantity
			order.Items[i].UnitPrice = unitPrice
			order.Items[i].Total = unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
			order.TotalValue = sumItems(order.Items)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	})
}

// RemoveItem deletes a line from an unlocked order
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID string) (*models.ServiceOrder, error) {
	return s.mutateOrder(ctx, orderID, func(tx *store.Tx, order *models.ServiceOrder) error {
		for i := range order.Items {
			if order.Items[i].ID != itemID {
				continue
			}
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
			order.TotalValue = sumItems(order.Items)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	})
}

// UpdateDetails patches the order's owned sub-records (notes, checklist,
// attachments, time logs) while the order is unlocked.
type UpdateDetailsRequest struct {
	Notes           *string                 `json:"notes,omitempty"`
	TechnicianName  *string                 `json:"technician_name,omitempty"`
	TechnicianNotes *string                 `json:"technician_notes,omitempty"`
	BoatStatus      *string                 `json:"boat_status,omitempty"`
	EngineStatus    *string                 `json:"engine_status,omitempty"`
	Checklist       *[]models.ChecklistItem `json:"checklist,omitempty"`
	Attachments     *[]models.Attachment    `json:"attachments,omitempty"`
	TimeLogs        *[]models.TimeLog       `json:"time_logs,omitempty"`
}

// UpdateDetails applies the patch to an unlocked order
func (s *OrderService) UpdateDetails(ctx context.Context, orderID string, req *UpdateDetailsRequest) (*models.ServiceOrder, error) {
	return s.mutateOrder(ctx, orderID, func(tx *store.Tx, order *models.ServiceOrder) error {
		if req.Notes != nil {
			order.Notes = *req.Notes
		}
		if req.TechnicianName != nil {
			order.TechnicianName = *req.TechnicianName
		}
		if req.TechnicianNotes != nil {
			order.TechnicianNotes = *req.TechnicianNotes
		}
		if req.BoatStatus != nil {
			order.BoatStatus = *req.BoatStatus
		}
		if req.EngineStatus != nil {
			order.EngineStatus = *req.EngineStatus
		}
		if req.Checklist != nil {
			order.Checklist = *req.Checklist
		}
		if req.Attachments != nil {
			order.Attachments = *req.Attachments
		}
		if req.TimeLogs != nil {
			order.TimeLogs = *req.TimeLogs
		}
		return nil
	})
}

// SetStatus performs an ordinary transition. Terminal states are not
// reachable here: completion and cancellation carry side effects and go
// through Complete and Cancel.
func (s *OrderService) SetStatus(ctx context.Context, orderID, newStatus string) (*models.ServiceOrder, error) {
	switch newStatus {
	case models.OrderStatusPending, models.OrderStatusQuotation,
		models.OrderStatusApproved, models.OrderStatusInProgress:
	case models.OrderStatusCompleted, models.OrderStatusCanceled:
		return nil, fmt.Errorf("%w: %s requires the dedicated operation", ErrValidation, newStatus)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	return s.mutateOrder(ctx, orderID, func(tx *store.Tx, order *models.ServiceOrder) error {
		order.Status = newStatus
		return nil
	})
}

// Complete closes an order: consumes stock for every linked PART line,
// records the income entry (duplicate-guarded) and moves the order to
// COMPLETED. Completing an already-completed order is a success no-op.
func (s *OrderService) Complete(ctx context.Context, orderID, user string) (*models.ServiceOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Complete")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CompletionLatency.Observe(time.Since(start).Seconds())
	}()

	release, err := s.acquireWorkflowLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		completed   models.ServiceOrder
		alreadyDone bool
		income      *models.Transaction
		movements   []movementRecord
	)

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		movements = movements[:0]

		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}
		idx := indexOfOrder(orders, orderID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		order := &orders[idx]

		if order.Status == models.OrderStatusCompleted {
			completed = *order
			alreadyDone = true
			return nil
		}
		if order.Status == models.OrderStatusCanceled {
			return fmt.Errorf("%w: order %s is canceled", ErrOrderLocked, orderID)
		}

		for _, item := range order.Items {
			if item.Type != models.ItemTypePart || item.PartID == "" {
				continue
			}
			reason := fmt.Sprintf("OS #%d - %s", order.Number, item.Description)
			part, movement, err := s.inventory.Consume(tx, item.PartID, item.Quantity, reason, order.ID, user)
			if err != nil {
				if errors.Is(err, ledger.ErrPartNotFound) && !s.strictPartLinking {
					s.logger.Warn("Skipping untracked part on completion",
						zap.String("order_id", order.ID),
						zap.String("part_id", item.PartID))
					continue
				}
				return err
			}
			movements = append(movements, movementRecord{part: *part, movement: *movement})
		}

		income, err = s.finance.RecordIncome(tx, order.ID, order.TotalValue,
			fmt.Sprintf("Receita OS #%d", order.Number),
			fmt.Sprintf("NFS-%d", order.Number))
		if err != nil {
			return err
		}

		order.Status = models.OrderStatusCompleted
		if err := store.Save(tx, store.Orders, orders); err != nil {
			return err
		}
		completed = *order
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("complete", failureReason(err)).Inc()
		return nil, err
	}

	if alreadyDone {
		s.logger.Info("Order already completed, no-op",
			zap.String("order_id", orderID))
		return &completed, nil
	}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed",
		zap.String("order_id", completed.ID),
		zap.Int("number", completed.Number),
		zap.String("total_value", completed.TotalValue.String()))

	s.publishMovements(ctx, movements)
	if s.eventPublisher != nil {
		event := &models.OrderCompletedEvent{
			BaseEvent:      newBaseEvent(models.EventTypeOrderCompleted),
			OrderID:        completed.ID,
			OrderNumber:    completed.Number,
			BoatID:         completed.BoatID,
			TotalValue:     completed.TotalValue,
			TransactionID:  income.ID,
			DocumentNumber: income.DocumentNumber,
		}
		if err := s.eventPublisher.PublishOrderCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
		}
	}

	return &completed, nil
}

// Reopen reverses a completed order: every consumed PART line is returned
// to stock, the income entry is soft-canceled and the order moves back to
// IN_PROGRESS. Only COMPLETED orders can be reopened.
func (s *OrderService) Reopen(ctx context.Context, orderID, user string) (*models.ServiceOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Reopen")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReopenLatency.Observe(time.Since(start).Seconds())
	}()

	release, err := s.acquireWorkflowLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		reopened   models.ServiceOrder
		canceledTx *models.Transaction
		movements  []movementRecord
	)

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		movements = movements[:0]
		canceledTx = nil

		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}
		idx := indexOfOrder(orders, orderID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		order := &orders[idx]

		if order.Status != models.OrderStatusCompleted {
			return fmt.Errorf("%w: only completed orders can be reopened, order %s is %s",
				ErrValidation, orderID, order.Status)
		}

		for _, item := range order.Items {
			if item.Type != models.ItemTypePart || item.PartID == "" {
				continue
			}
			reason := fmt.Sprintf("Estorno OS #%d - %s", order.Number, item.Description)
			part, movement, err := s.inventory.ReverseConsumption(tx, item.PartID, item.Quantity, reason, order.ID, user)
			if err != nil {
				if errors.Is(err, ledger.ErrPartNotFound) && !s.strictPartLinking {
					s.logger.Warn("Skipping untracked part on reopen",
						zap.String("order_id", order.ID),
						zap.String("part_id", item.PartID))
					continue
				}
				return err
			}
			movements = append(movements, movementRecord{part: *part, movement: *movement})
		}

		incomeTx, err := s.finance.IncomeForOrder(tx, order.ID)
		if err != nil {
			return err
		}
		if incomeTx == nil {
			s.logger.Warn("No income transaction found for reopened order",
				zap.String("order_id", order.ID))
		} else {
			canceledTx, err = s.finance.Cancel(tx, incomeTx.ID)
			if err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusInProgress
		if err := store.Save(tx, store.Orders, orders); err != nil {
			return err
		}
		reopened = *order
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("reopen", failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersReopenedTotal.Inc()
	s.logger.Info("Order reopened",
		zap.String("order_id", reopened.ID),
		zap.Int("number", reopened.Number))

	s.publishMovements(ctx, movements)
	if s.eventPublisher != nil {
		event := &models.OrderReopenedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderReopened),
			OrderID:     reopened.ID,
			OrderNumber: reopened.Number,
		}
		if canceledTx != nil {
			event.TransactionID = canceledTx.ID
		}
		if err := s.eventPublisher.PublishOrderReopened(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderReopened event", zap.Error(err))
		}
	}

	return &reopened, nil
}

// Cancel abandons an order from any non-terminal state. Items are left
// untouched and no inventory or financial side effects occur; the
// asymmetry with Complete is intended business behavior.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string) (*models.ServiceOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	var canceled models.ServiceOrder
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}
		idx := indexOfOrder(orders, orderID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		order := &orders[idx]

		if models.IsTerminal(order.Status) {
			return fmt.Errorf("%w: order %s is %s", ErrOrderLocked, orderID, order.Status)
		}

		order.Status = models.OrderStatusCanceled
		if err := store.Save(tx, store.Orders, orders); err != nil {
			return err
		}
		canceled = *order
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("cancel", failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCanceledTotal.Inc()
	s.logger.Info("Order canceled",
		zap.String("order_id", canceled.ID),
		zap.String("reason", reason))

	if s.eventPublisher != nil {
		event := &models.OrderCanceledEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderCanceled),
			OrderID:     canceled.ID,
			OrderNumber: canceled.Number,
			Reason:      reason,
		}
		if err := s.eventPublisher.PublishOrderCanceled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCanceled event", zap.Error(err))
		}
	}

	return &canceled, nil
}

// movementRecord pairs a committed movement with the part state after it
type movementRecord struct {
	part     models.Part
	movement models.StockMovement
}

// publishMovements emits StockMovementRecorded events and refreshes the
// Redis quantity cache after a successful commit.
func (s *OrderService) publishMovements(ctx context.Context, records []movementRecord) {
	for _, rec := range records {
		if s.redis != nil {
			if err := s.redis.CachePartQuantity(ctx, rec.part.ID, rec.part.Quantity); err != nil {
				s.logger.Warn("Failed to refresh part quantity cache",
					zap.String("part_id", rec.part.ID),
					zap.Error(err))
			}
		}
		if s.eventPublisher == nil {
			continue
		}
		event := &models.StockMovementRecordedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeStockMovementRecorded),
			MovementID:    rec.movement.ID,
			PartID:        rec.part.ID,
			PartName:      rec.part.Name,
			MovementType:  rec.movement.Type,
			Quantity:      rec.movement.Quantity,
			QuantityAfter: rec.part.Quantity,
			MinStock:      rec.part.MinStock,
			ReferenceID:   rec.movement.ReferenceID,
		}
		if err := s.eventPublisher.PublishStockMovement(ctx, event); err != nil {
			s.logger.Error("Failed to publish StockMovementRecorded event", zap.Error(err))
		}
	}
}

// acquireWorkflowLock takes the cross-instance workflow lock when Redis
// is configured. The store transaction is still the atomicity boundary;
// the lock only widens serialization to multiple service instances.
func (s *OrderService) acquireWorkflowLock(ctx context.Context) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	token, err := s.redis.AcquireLock(ctx, "order-workflow", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire workflow lock: %w", err)
	}
	return func() {
		if err := s.redis.ReleaseLock(context.Background(), "order-workflow", token); err != nil {
			s.logger.Warn("Failed to release workflow lock", zap.Error(err))
		}
	}, nil
}

// mutateOrder runs fn against an unlocked order inside one Update and
// persists the whole orders collection.
func (s *OrderService) mutateOrder(ctx context.Context, orderID string, fn func(tx *store.Tx, order *models.ServiceOrder) error) (*models.ServiceOrder, error) {
	var updated models.ServiceOrder
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		orders, err := store.Load(tx, store.Orders)
		if err != nil {
			return err
		}
		idx := indexOfOrder(orders, orderID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		order := &orders[idx]

		if models.IsTerminal(order.Status) {
			return fmt.Errorf("%w: order %s is %s", ErrOrderLocked, orderID, order.Status)
		}

		if err := fn(tx, order); err != nil {
			return err
		}
		if err := store.Save(tx, store.Orders, orders); err != nil {
			return err
		}
		updated = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func indexOfOrder(orders []models.ServiceOrder, orderID string) int {
	for i := range orders {
		if orders[i].ID == orderID {
			return i
		}
	}
	return -1
}

func sumItems(items []models.ServiceItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Total)
	}
	return total
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrOrderLocked):
		return "order_locked"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ledger.ErrStockUnderflow):
		return "stock_underflow"
	case errors.Is(err, ledger.ErrPartNotFound):
		return "part_not_found"
	default:
		return "store_error"
	}
}
