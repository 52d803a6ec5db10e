package purchasing

import (
	"fmt"
	"time"
)

// DraftLine mirrors one requisition line inside an order draft. Item lines
// carry an adjustable quantity floored at the requisition quantity; service
// lines are fixed at one unit of the hourly rate.
type DraftLine struct {
	RefLineID  int64   `json:"ref_line_id"`
	ItemID     int64   `json:"item_id,omitempty"`
	ServiceID  int64   `json:"service_id,omitempty"`
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	FloorQty   int     `json:"floor_quantity"`
	UnitPrice  float64 `json:"unit_price"`
	Selected   bool    `json:"selected"`
}

// Draft is the in-memory purchase order being composed from one approved
// requisition. Transitions are pure: each returns a new Draft value or a
// domain error, leaving the receiver untouched.
type Draft struct {
	ID            string      `json:"id"`
	OrderType     OrderType   `json:"order_type"`
	RequisitionID int64       `json:"requisition_id"`
	VendorID      int64       `json:"vendor_id,omitempty"`
	PaymentType   PaymentType `json:"payment_type,omitempty"`
	ItemLines     []DraftLine `json:"item_lines"`
	ServiceLines  []DraftLine `json:"service_lines"`
	Remarks       string      `json:"remarks,omitempty"`
	CreatedBy     int64       `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewDraft builds a draft from an approved requisition's lines. Every line
// starts selected with its quantity equal to the requisition quantity,
// which also becomes the floor.
func NewDraft(id string, orderType OrderType, requisitionID int64, createdBy int64, itemLines, serviceLines []DraftLine) (Draft, error) {
	if !orderType.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown order type %q", ErrValidation, orderType)
	}
	if requisitionID == 0 {
		return Draft{}, ErrMissingRequisition
	}
	now := time.Now()
	d := Draft{
		ID:            id,
		OrderType:     orderType,
		RequisitionID: requisitionID,
		ItemLines:     make([]DraftLine, len(itemLines)),
		ServiceLines:  make([]DraftLine, len(serviceLines)),
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	copy(d.ItemLines, itemLines)
	copy(d.ServiceLines, serviceLines)
	for i := range d.ItemLines {
		d.ItemLines[i].Selected = true
		d.ItemLines[i].FloorQty = d.ItemLines[i].Quantity
	}
	for i := range d.ServiceLines {
		d.ServiceLines[i].Selected = true
		d.ServiceLines[i].Quantity = 1
		d.ServiceLines[i].FloorQty = 1
	}
	return d, nil
}

// ActiveLines returns the lines matching the draft's order type.
func (d Draft) ActiveLines() []DraftLine {
	if d.OrderType == OrderTypeServices {
		return d.ServiceLines
	}
	return d.ItemLines
}

// ToggleLine includes or excludes a line from the total; it never removes
// the line from the draft.
func (d Draft) ToggleLine(refLineID int64) (Draft, error) {
	return d.mutateLine(refLineID, func(line *DraftLine) error {
		line.Selected = !line.Selected
		return nil
	})
}

// IncreaseQuantity raises an item line by one; consolidation above the
// requisition quantity is always allowed.
func (d Draft) IncreaseQuantity(refLineID int64) (Draft, error) {
	if d.OrderType != OrderTypeItems {
		return d, fmt.Errorf("%w: service quantities are fixed", ErrValidation)
	}
	return d.mutateLine(refLineID, func(line *DraftLine) error {
		line.Quantity++
		return nil
	})
}

// DecreaseQuantity lowers an item line by one, but never under the
// originating requisition quantity.
func (d Draft) DecreaseQuantity(refLineID int64) (Draft, error) {
	if d.OrderType != OrderTypeItems {
		return d, fmt.Errorf("%w: service quantities are fixed", ErrValidation)
	}
	return d.mutateLine(refLineID, func(line *DraftLine) error {
		if line.Quantity <= line.FloorQty {
			return ErrQuantityBelowFloor
		}
		line.Quantity--
		return nil
	})
}

// SelectVendor sets the vendor; selecting the current vendor again clears
// the selection. When the new vendor does not accept the draft's payment
// type, the payment type is cleared rather than carried over.
func (d Draft) SelectVendor(vendorID int64, accepted []PaymentType) (Draft, error) {
	if vendorID == 0 {
		return d, ErrMissingVendor
	}
	out := d.clone()
	if d.VendorID == vendorID {
		out.VendorID = 0
		out.PaymentType = ""
		out.UpdatedAt = time.Now()
		return out, nil
	}
	out.VendorID = vendorID
	if out.PaymentType != "" && !contains(accepted, out.PaymentType) {
		out.PaymentType = ""
	}
	out.UpdatedAt = time.Now()
	return out, nil
}

// SetOrderType switches between item and service composition. The vendor
// and payment selections are cleared: a vendor chosen for one domain is
// not assumed valid for the other.
func (d Draft) SetOrderType(orderType OrderType) (Draft, error) {
	if !orderType.Valid() {
		return d, fmt.Errorf("%w: unknown order type %q", ErrValidation, orderType)
	}
	if orderType == d.OrderType {
		return d, nil
	}
	out := d.clone()
	out.OrderType = orderType
	out.VendorID = 0
	out.PaymentType = ""
	out.UpdatedAt = time.Now()
	return out, nil
}

// SetPaymentType records the settlement method, which must be one the
// selected vendor accepts.
func (d Draft) SetPaymentType(t PaymentType, accepted []PaymentType) (Draft, error) {
	if d.VendorID == 0 {
		return d, ErrMissingVendor
	}
	if !t.Valid() {
		return d, fmt.Errorf("%w: unknown payment type %q", ErrValidation, t)
	}
	if !contains(accepted, t) {
		return d, ErrIncompatiblePaymentType
	}
	out := d.clone()
	out.PaymentType = t
	out.UpdatedAt = time.Now()
	return out, nil
}

// SetRemarks attaches free-form remarks to the draft.
func (d Draft) SetRemarks(remarks string) Draft {
	out := d.clone()
	out.Remarks = remarks
	out.UpdatedAt = time.Now()
	return out
}

// Total sums the selected lines of the active order type. Item lines
// contribute quantity times unit price; service lines one hourly rate each.
func (d Draft) Total() float64 {
	var total float64
	for _, line := range d.ActiveLines() {
		if !line.Selected {
			continue
		}
		total += float64(line.Quantity) * line.UnitPrice
	}
	return total
}

// SelectedCategoryIDs lists the categories represented by the selected
// lines of the active order type, for vendor suggestion.
func (d Draft) SelectedCategoryIDs() []int64 {
	var ids []int64
	for _, line := range d.ActiveLines() {
		if line.Selected {
			ids = append(ids, line.CategoryID)
		}
	}
	return ids
}

// Validate checks the submission preconditions. accepted is the payment
// set of the selected vendor; the compatibility gate is re-checked at
// submission, not only when the payment type was picked.
func (d Draft) Validate(accepted []PaymentType) error {
	if d.RequisitionID == 0 {
		return ErrMissingRequisition
	}
	if d.VendorID == 0 {
		return ErrMissingVendor
	}
	if d.PaymentType == "" {
		return ErrMissingPaymentType
	}
	if !contains(accepted, d.PaymentType) {
		return ErrIncompatiblePaymentType
	}
	selected := false
	for _, line := range d.ActiveLines() {
		if line.Selected {
			selected = true
			break
		}
	}
	if !selected {
		return ErrNoLinesSelected
	}
	return nil
}

func (d Draft) mutateLine(refLineID int64, fn func(*DraftLine) error) (Draft, error) {
	out := d.clone()
	lines := out.ItemLines
	if out.OrderType == OrderTypeServices {
		lines = out.ServiceLines
	}
	for i := range lines {
		if lines[i].RefLineID == refLineID {
			if err := fn(&lines[i]); err != nil {
				return d, err
			}
			out.UpdatedAt = time.Now()
			return out, nil
		}
	}
	return d, ErrUnknownLine
}

func (d Draft) clone() Draft {
	out := d
	out.ItemLines = make([]DraftLine, len(d.ItemLines))
	copy(out.ItemLines, d.ItemLines)
	out.ServiceLines = make([]DraftLine, len(d.ServiceLines))
	copy(out.ServiceLines, d.ServiceLines)
	return out
}

func contains(set []PaymentType, t PaymentType) bool {
	for _, candidate := range set {
		if candidate == t {
			return true
		}
	}
	return false
}
