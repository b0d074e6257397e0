package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"marealta-service/internal/models"
	"marealta-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// PublishOrderReopened publishes OrderReopened event
func (ep *EventPublisher) PublishOrderReopened(ctx context.Context, event *models.OrderReopenedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// PublishOrderCanceled publishes OrderCanceled event
func (ep *EventPublisher) PublishOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// PublishStockMovement publishes StockMovementRecorded event
func (ep *EventPublisher) PublishStockMovement(ctx context.Context, event *models.StockMovementRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("part-%s", event.PartID), event)
}

// PublishInvoiceIssued publishes InvoiceIssued event
func (ep *EventPublisher) PublishInvoiceIssued(ctx context.Context, event *models.InvoiceIssuedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderCompleted func(context.Context, *models.OrderCompletedEvent) error
	onStockMovement  func(context.Context, *models.StockMovementRecordedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.NamedLogger("event-handler")}
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnStockMovement registers a handler for StockMovementRecorded events
func (eh *EventHandler) OnStockMovement(handler func(context.Context, *models.StockMovementRecordedEvent) error) {
	eh.onStockMovement = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypeStockMovementRecorded:
		if eh.onStockMovement != nil {
			var event models.StockMovementRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockMovementRecorded event: %w", err)
			}
			return eh.onStockMovement(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
