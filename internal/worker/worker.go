package worker

import (
	"context"
	"time"

	"marealta-service/internal/broker"
	"marealta-service/internal/models"
	"marealta-service/internal/util"

	"go.uber.org/zap"
)

// FiscalWorker consumes OrderCompleted events and runs the fiscal
// invoice issuance stub. There is no fiscal-authority integration: the
// stub registers the document number and emits an InvoiceIssued event so
// downstream consumers see the same shape a real issuer would produce.
type FiscalWorker struct {
	consumer       *broker.Consumer
	eventHandler   *broker.EventHandler
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewFiscalWorker creates a fiscal worker
func NewFiscalWorker(consumer *broker.Consumer, eventPublisher *broker.EventPublisher) *FiscalWorker {
	w := &FiscalWorker{
		consumer:       consumer,
		eventPublisher: eventPublisher,
		logger:         util.NamedLogger("fiscal-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *FiscalWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting fiscal worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *FiscalWorker) Stop() error {
	w.logger.Info("Stopping fiscal worker")
	return w.consumer.Close()
}

func (w *FiscalWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	w.logger.Info("Issuing fiscal invoice stub",
		zap.String("order_id", event.OrderID),
		zap.Int("order_number", event.OrderNumber),
		zap.String("document_number", event.DocumentNumber),
		zap.String("amount", event.TotalValue.String()))

	util.InvoicesIssuedTotal.Inc()

	if w.eventPublisher != nil {
		issued := &models.InvoiceIssuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   event.EventID + ":invoice",
				EventType: models.EventTypeInvoiceIssued,
				Timestamp: time.Now().UTC(),
			},
			OrderID:        event.OrderID,
			DocumentNumber: event.DocumentNumber,
			Amount:         event.TotalValue,
		}
		if err := w.eventPublisher.PublishInvoiceIssued(ctx, issued); err != nil {
			w.logger.Error("Failed to publish InvoiceIssued event", zap.Error(err))
		}
	}
	return nil
}

// StockAlertWorker consumes StockMovementRecorded events and raises an
// alert when a part falls to or below its minimum stock.
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockAlertWorker creates a stock alert worker
func NewStockAlertWorker(consumer *broker.Consumer) *StockAlertWorker {
	w := &StockAlertWorker{
		consumer: consumer,
		logger:   util.NamedLogger("stock-alert-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockMovement(w.handleMovement)
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}

func (w *StockAlertWorker) handleMovement(ctx context.Context, event *models.StockMovementRecordedEvent) error {
	outbound := event.MovementType == models.MovementOutOS ||
		event.MovementType == models.MovementAdjustmentMinus
	if !outbound || event.QuantityAfter > event.MinStock {
		return nil
	}

	util.LowStockAlertsTotal.Inc()
	w.logger.Warn("Part at or below minimum stock",
		zap.String("part_id", event.PartID),
		zap.String("part_name", event.PartName),
		zap.Int("quantity", event.QuantityAfter),
		zap.Int("min_stock", event.MinStock),
		zap.String("reference_id", event.ReferenceID))
	return nil
}
