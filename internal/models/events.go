package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCompleted        = "ORDER_COMPLETED"
	EventTypeOrderReopened         = "ORDER_REOPENED"
	EventTypeOrderCanceled         = "ORDER_CANCELED"
	EventTypeStockMovementRecorded = "STOCK_MOVEMENT_RECORDED"
	EventTypeInvoiceIssued         = "INVOICE_ISSUED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCompletedEvent published after a completion commits
type OrderCompletedEvent struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	OrderNumber    int             `json:"order_number"`
	BoatID         string          `json:"boat_id"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TransactionID  string          `json:"transaction_id"`
	DocumentNumber string          `json:"document_number"`
}

// OrderReopenedEvent published after a reopening commits
type OrderReopenedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	OrderNumber   int    `json:"order_number"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// OrderCanceledEvent published when an order is canceled
type OrderCanceledEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber int    `json:"order_number"`
	Reason      string `json:"reason,omitempty"`
}

// StockMovementRecordedEvent published for every committed movement
type StockMovementRecordedEvent struct {
	BaseEvent
	MovementID    string `json:"movement_id"`
	PartID        string `json:"part_id"`
	PartName      string `json:"part_name"`
	MovementType  string `json:"movement_type"`
	Quantity      int    `json:"quantity"`
	QuantityAfter int    `json:"quantity_after"`
	MinStock      int    `json:"min_stock"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

// InvoiceIssuedEvent published by the fiscal worker stub once a service
// invoice document number has been registered for a completed order
type InvoiceIssuedEvent struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	DocumentNumber string          `json:"document_number"`
	Amount         decimal.Decimal `json:"amount"`
}
