package requisitions

import (
	"errors"
	"time"
)

// Requisition lifecycle statuses.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDelivered Status = "DELIVERED"
	StatusReceived  Status = "RECEIVED"
)

// Requisition priorities.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether the priority is one of the known variants.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Requisition is an internal request for items or services, subject to
// approval before becoming purchasable.
type Requisition struct {
	ID          int64
	Number      string
	Status      Status
	Priority    Priority
	RequestorID int64
	Notes       string
	Remarks     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemLine requests a quantity of one item. Lines are created once on
// submission and are read-only afterwards.
type ItemLine struct {
	ID            int64
	RequisitionID int64
	ItemID        int64
	Quantity      int
}

// ServiceLine requests one service, optionally in the context of an item.
type ServiceLine struct {
	ID            int64
	RequisitionID int64
	ServiceID     int64
	ItemID        int64
}

var (
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("requisitions: invalid state transition")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("requisitions: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("requisitions: invalid input")
)
