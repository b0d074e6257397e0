package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Part represents a spare part in the inventory catalog
type Part struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Barcode  string          `json:"barcode,omitempty"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
	Price    decimal.Decimal `json:"price"`
	MinStock int             `json:"min_stock"`
	Location string          `json:"location,omitempty"`
}

// StockMovement is one immutable entry in the inventory audit log.
// Quantity is an unsigned magnitude; the direction is carried by Type.
type StockMovement struct {
	ID          string    `json:"id"`
	PartID      string    `json:"part_id"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Date        time.Time `json:"date"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Description string    `json:"description"`
	User        string    `json:"user"`
}

// Movement types
const (
	MovementInInvoice       = "IN_INVOICE"
	MovementOutOS           = "OUT_OS"
	MovementAdjustmentPlus  = "ADJUSTMENT_PLUS"
	MovementAdjustmentMinus = "ADJUSTMENT_MINUS"
	MovementReturnOS        = "RETURN_OS"
)

// ServiceItem is a line on a service order. PART items snapshot the
// part's price and cost at add-time; LABOR items carry zero cost.
type ServiceItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	PartID      string          `json:"part_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Total       decimal.Decimal `json:"total"`
}

// Item types
const (
	ItemTypePart  = "PART"
	ItemTypeLabor = "LABOR"
)

// ServiceOrder tracks a single repair/maintenance engagement for one boat
type ServiceOrder struct {
	ID                string          `json:"id"`
	Number            int             `json:"number"`
	BoatID            string          `json:"boat_id"`
	EngineID          string          `json:"engine_id,omitempty"`
	Description       string          `json:"description"`
	Status            string          `json:"status"`
	Items             []ServiceItem   `json:"items"`
	TotalValue        decimal.Decimal `json:"total_value"`
	CreatedAt         time.Time       `json:"created_at"`
	Requester         string          `json:"requester,omitempty"`
	TechnicianName    string          `json:"technician_name,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	ScheduledAt       *time.Time      `json:"scheduled_at,omitempty"`
	EstimatedDuration int             `json:"estimated_duration,omitempty"`
	Checklist         []ChecklistItem `json:"checklist,omitempty"`
	Attachments       []Attachment    `json:"attachments,omitempty"`
	TimeLogs          []TimeLog       `json:"time_logs,omitempty"`
	TechnicianNotes   string          `json:"technician_notes,omitempty"`
	BoatStatus        string          `json:"boat_status,omitempty"`
	EngineStatus      string          `json:"engine_status,omitempty"`
}

// Order statuses
const (
	OrderStatusPending    = "PENDING"
	OrderStatusQuotation  = "QUOTATION"
	OrderStatusApproved   = "APPROVED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCanceled   = "CANCELED"
)

// IsTerminal reports whether no ordinary transition leaves the status.
// COMPLETED can still be left through the privileged reopen operation.
func IsTerminal(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCanceled
}

// ChecklistItem is an owned sub-record of a service order
type ChecklistItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Attachment is a file reference owned by a service order
type Attachment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	AddedAt  time.Time `json:"added_at"`
	MimeType string    `json:"mime_type,omitempty"`
}

// TimeLog records technician time spent on an order
type TimeLog struct {
	ID      string    `json:"id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Notes   string    `json:"notes,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Minutes int       `json:"minutes"`
}

// Transaction is one entry in the financial ledger. Entries are never
// deleted; reversals soft-cancel the entry and annotate its description.
type Transaction struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Status         string          `json:"status"`
	OrderID        string          `json:"order_id,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
}

// Transaction types
const (
	TransactionIncome  = "INCOME"
	TransactionExpense = "EXPENSE"
)

// Transaction statuses
const (
	TransactionPaid     = "PAID"
	TransactionPending  = "PENDING"
	TransactionCanceled = "CANCELED"
)

// Client is a registry record for a customer
type Client struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// Boat belongs to a client and optionally berths at a marina
type Boat struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	Name        string  `json:"name"`
	Model       string  `json:"model,omitempty"`
	Length      float64 `json:"length,omitempty"`
	MarinaID    string  `json:"marina_id,omitempty"`
	EngineModel string  `json:"engine_model,omitempty"`
}

// Marina is a registry record for a mooring location
type Marina struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	City   string `json:"city,omitempty"`
	Berths int    `json:"berths,omitempty"`
}

// User is a staff account; Token is the opaque API credential
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// User roles
const (
	RoleAdmin      = "ADMIN"
	RoleTechnician = "TECHNICIAN"
	RoleOffice     = "OFFICE"
)
