package purchasing

import (
	"errors"
	"time"
)

// OrderType splits purchase orders between goods and services.
type OrderType string

const (
	OrderTypeItems    OrderType = "Items"
	OrderTypeServices OrderType = "Services"
)

// Valid reports whether the order type is a known variant.
func (t OrderType) Valid() bool {
	return t == OrderTypeItems || t == OrderTypeServices
}

// VendorType is derived from the categories a vendor is linked to; it is
// never stored.
type VendorType string

const (
	VendorTypeItem         VendorType = "Item Vendor"
	VendorTypeService      VendorType = "Service Vendor"
	VendorTypeMixed        VendorType = "Mixed Vendor"
	VendorTypeUnclassified VendorType = "Unclassified Vendor"
)

// PaymentType enumerates settlement methods a vendor may accept.
type PaymentType string

const (
	PaymentCash         PaymentType = "CASH"
	PaymentDisbursement PaymentType = "DISBURSEMENT"
	PaymentStoreCredit  PaymentType = "STORE_CREDIT"
)

// Valid reports whether the payment type is a known variant.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentCash, PaymentDisbursement, PaymentStoreCredit:
		return true
	}
	return false
}

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusSubmitted POStatus = "SUBMITTED"
	POStatusApproved  POStatus = "APPROVED"
	POStatusClosed    POStatus = "CLOSED"
	POStatusCancelled POStatus = "CANCELLED"
)

// PurchaseOrder is a vendor-facing order derived from one approved
// requisition. Drafts live in Redis until submission; only submitted
// orders reach Postgres.
type PurchaseOrder struct {
	ID            int64
	ReferenceNo   string
	OrderType     OrderType
	PaymentType   PaymentType
	VendorID      int64
	RequisitionID int64
	Status        POStatus
	Remarks       string
	Total         float64
	CreatedBy     int64
	ApprovedBy    int64
	ApprovedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is an item line on a submitted purchase order.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ItemID    int64
	Quantity  int
	UnitPrice float64
}

// OrderService is a service line on a submitted purchase order.
type OrderService struct {
	ID         int64
	OrderID    int64
	ServiceID  int64
	HourlyRate float64
}

var (
	// ErrMissingRequisition occurs when a draft has no originating requisition.
	ErrMissingRequisition = errors.New("purchasing: no requisition selected")
	// ErrMissingVendor occurs when a draft has no vendor selected.
	ErrMissingVendor = errors.New("purchasing: no vendor selected")
	// ErrMissingPaymentType occurs when a draft has no payment type selected.
	ErrMissingPaymentType = errors.New("purchasing: no payment type selected")
	// ErrNoLinesSelected occurs when every draft line is deselected.
	ErrNoLinesSelected = errors.New("purchasing: no lines selected")
	// ErrIncompatiblePaymentType occurs when the vendor does not accept the payment type.
	ErrIncompatiblePaymentType = errors.New("purchasing: vendor does not accept payment type")
	// ErrQuantityBelowFloor occurs when a decrement would drop a line under
	// the originating requisition quantity.
	ErrQuantityBelowFloor = errors.New("purchasing: quantity cannot fall below requisition quantity")
	// ErrUnknownLine occurs when a draft operation names a line the draft does not carry.
	ErrUnknownLine = errors.New("purchasing: unknown draft line")
	// ErrInvalidState occurs when an action violates the order workflow.
	ErrInvalidState = errors.New("purchasing: invalid state transition")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchasing: invalid input")
)
