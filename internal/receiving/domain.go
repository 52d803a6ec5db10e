package receiving

import (
	"errors"
	"time"
)

// Delivery lifecycle statuses. Stock moves only when a draft is posted.
type DeliveryStatus string

const (
	DeliveryStatusDraft  DeliveryStatus = "DRAFT"
	DeliveryStatusPosted DeliveryStatus = "POSTED"
)

// Rework lifecycle statuses.
type ReworkStatus string

const (
	ReworkStatusOpen      ReworkStatus = "OPEN"
	ReworkStatusCompleted ReworkStatus = "COMPLETED"
)

// Delivery records goods arriving against an approved purchase order.
type Delivery struct {
	ID            int64
	Number        string
	OrderID       int64
	RequisitionID int64
	Status        DeliveryStatus
	Notes         string
	ReceivedBy    int64
	PostedAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLine is one received item quantity.
type DeliveryLine struct {
	ID         int64
	DeliveryID int64
	ItemID     int64
	Quantity   int
}

// Return sends goods from a posted delivery back to the vendor.
type Return struct {
	ID         int64
	Number     string
	DeliveryID int64
	Reason     string
	CreatedBy  int64
	CreatedAt  time.Time
}

// ReturnLine is one returned item quantity.
type ReturnLine struct {
	ID       int64
	ReturnID int64
	ItemID   int64
	Quantity int
}

// Rework tracks vendor-side repair of returned goods.
type Rework struct {
	ID        int64
	Number    string
	ReturnID  int64
	Status    ReworkStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrInvalidState occurs when an action violates the delivery workflow.
	ErrInvalidState = errors.New("receiving: invalid state transition")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("receiving: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("receiving: invalid input")
	// ErrLineNotOnOrder occurs when a delivery names an item the order does not carry.
	ErrLineNotOnOrder = errors.New("receiving: item is not on the purchase order")
	// ErrQuantityExceeded occurs when a line exceeds the ordered or delivered quantity.
	ErrQuantityExceeded = errors.New("receiving: quantity exceeds the remaining amount")
)
