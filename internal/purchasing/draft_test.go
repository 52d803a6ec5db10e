package purchasing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func draftFixture(t *testing.T) Draft {
	t.Helper()
	itemLines := []DraftLine{
		{RefLineID: 1, ItemID: 100, CategoryID: 1, Name: "Cable Drum", Quantity: 3, UnitPrice: 25},
		{RefLineID: 2, ItemID: 101, CategoryID: 2, Name: "Socket Set", Quantity: 1, UnitPrice: 80},
	}
	serviceLines := []DraftLine{
		{RefLineID: 3, ServiceID: 200, CategoryID: 3, Name: "Panel Inspection", UnitPrice: 150},
	}
	draft, err := NewDraft("d-1", OrderTypeItems, 42, 7, itemLines, serviceLines)
	require.NoError(t, err)
	return draft
}

func TestNewDraftDefaults(t *testing.T) {
	draft := draftFixture(t)

	for _, line := range draft.ItemLines {
		require.True(t, line.Selected)
		require.Equal(t, line.Quantity, line.FloorQty)
	}
	for _, line := range draft.ServiceLines {
		require.True(t, line.Selected)
		require.Equal(t, 1, line.Quantity)
	}
	require.Equal(t, int64(42), draft.RequisitionID)
}

func TestNewDraftRequiresRequisition(t *testing.T) {
	_, err := NewDraft("d-1", OrderTypeItems, 0, 7, nil, nil)
	require.ErrorIs(t, err, ErrMissingRequisition)
}

func TestToggleLine(t *testing.T) {
	draft := draftFixture(t)

	next, err := draft.ToggleLine(1)
	require.NoError(t, err)
	require.False(t, next.ItemLines[0].Selected)
	// The original value is untouched.
	require.True(t, draft.ItemLines[0].Selected)

	next, err = next.ToggleLine(1)
	require.NoError(t, err)
	require.True(t, next.ItemLines[0].Selected)

	_, err = draft.ToggleLine(999)
	require.ErrorIs(t, err, ErrUnknownLine)
}

func TestQuantityFloor(t *testing.T) {
	draft := draftFixture(t)

	// At the floor a decrement is rejected outright.
	_, err := draft.DecreaseQuantity(1)
	require.ErrorIs(t, err, ErrQuantityBelowFloor)

	up, err := draft.IncreaseQuantity(1)
	require.NoError(t, err)
	require.Equal(t, 4, up.ItemLines[0].Quantity)

	down, err := up.DecreaseQuantity(1)
	require.NoError(t, err)
	require.Equal(t, 3, down.ItemLines[0].Quantity)

	_, err = down.DecreaseQuantity(1)
	require.ErrorIs(t, err, ErrQuantityBelowFloor)
}

func TestQuantityFixedForServices(t *testing.T) {
	draft := draftFixture(t)
	svc, err := draft.SetOrderType(OrderTypeServices)
	require.NoError(t, err)

	_, err = svc.IncreaseQuantity(3)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.DecreaseQuantity(3)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSelectVendorIdempotentDeselect(t *testing.T) {
	draft := draftFixture(t)
	accepted := []PaymentType{PaymentCash, PaymentDisbursement}

	next, err := draft.SelectVendor(10, accepted)
	require.NoError(t, err)
	require.Equal(t, int64(10), next.VendorID)

	next, err = next.SetPaymentType(PaymentCash, accepted)
	require.NoError(t, err)

	// Selecting the same vendor again clears both vendor and payment.
	next, err = next.SelectVendor(10, accepted)
	require.NoError(t, err)
	require.Zero(t, next.VendorID)
	require.Empty(t, next.PaymentType)
}

func TestSelectVendorClearsIncompatiblePayment(t *testing.T) {
	draft := draftFixture(t)

	next, err := draft.SelectVendor(10, []PaymentType{PaymentCash})
	require.NoError(t, err)
	next, err = next.SetPaymentType(PaymentCash, []PaymentType{PaymentCash})
	require.NoError(t, err)

	// The new vendor does not take cash, so the choice is dropped.
	next, err = next.SelectVendor(20, []PaymentType{PaymentDisbursement})
	require.NoError(t, err)
	require.Equal(t, int64(20), next.VendorID)
	require.Empty(t, next.PaymentType)
}

func TestSelectVendorKeepsCompatiblePayment(t *testing.T) {
	draft := draftFixture(t)
	accepted := []PaymentType{PaymentCash}

	next, err := draft.SelectVendor(10, accepted)
	require.NoError(t, err)
	next, err = next.SetPaymentType(PaymentCash, accepted)
	require.NoError(t, err)

	next, err = next.SelectVendor(20, []PaymentType{PaymentCash, PaymentStoreCredit})
	require.NoError(t, err)
	require.Equal(t, PaymentCash, next.PaymentType)
}

func TestSetOrderTypeClearsVendorAndPayment(t *testing.T) {
	draft := draftFixture(t)
	accepted := []PaymentType{PaymentCash}

	next, err := draft.SelectVendor(10, accepted)
	require.NoError(t, err)
	next, err = next.SetPaymentType(PaymentCash, accepted)
	require.NoError(t, err)

	next, err = next.SetOrderType(OrderTypeServices)
	require.NoError(t, err)
	require.Zero(t, next.VendorID)
	require.Empty(t, next.PaymentType)
	require.Equal(t, OrderTypeServices, next.OrderType)

	// Same order type is a no-op and keeps selections.
	same, err := next.SetOrderType(OrderTypeServices)
	require.NoError(t, err)
	require.Equal(t, next, same)
}

func TestSetPaymentTypeGate(t *testing.T) {
	draft := draftFixture(t)

	_, err := draft.SetPaymentType(PaymentCash, []PaymentType{PaymentCash})
	require.ErrorIs(t, err, ErrMissingVendor)

	next, err := draft.SelectVendor(10, []PaymentType{PaymentDisbursement})
	require.NoError(t, err)

	_, err = next.SetPaymentType(PaymentCash, []PaymentType{PaymentDisbursement})
	require.ErrorIs(t, err, ErrIncompatiblePaymentType)

	_, err = next.SetPaymentType("WIRE", []PaymentType{PaymentDisbursement})
	require.ErrorIs(t, err, ErrValidation)

	next, err = next.SetPaymentType(PaymentDisbursement, []PaymentType{PaymentDisbursement})
	require.NoError(t, err)
	require.Equal(t, PaymentDisbursement, next.PaymentType)
}

func TestTotalCountsSelectedActiveLines(t *testing.T) {
	draft := draftFixture(t)
	require.Equal(t, 3*25.0+80.0, draft.Total())

	next, err := draft.ToggleLine(2)
	require.NoError(t, err)
	require.Equal(t, 75.0, next.Total())

	svc, err := draft.SetOrderType(OrderTypeServices)
	require.NoError(t, err)
	require.Equal(t, 150.0, svc.Total())
}

func TestSelectedCategoryIDs(t *testing.T) {
	draft := draftFixture(t)
	require.Equal(t, []int64{1, 2}, draft.SelectedCategoryIDs())

	next, err := draft.ToggleLine(1)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, next.SelectedCategoryIDs())
}

func TestValidateOrder(t *testing.T) {
	draft := draftFixture(t)
	accepted := []PaymentType{PaymentCash}

	require.ErrorIs(t, draft.Validate(accepted), ErrMissingVendor)

	withVendor, err := draft.SelectVendor(10, accepted)
	require.NoError(t, err)
	require.ErrorIs(t, withVendor.Validate(accepted), ErrMissingPaymentType)

	complete, err := withVendor.SetPaymentType(PaymentCash, accepted)
	require.NoError(t, err)
	require.NoError(t, complete.Validate(accepted))

	// The gate re-checks compatibility at submit time.
	require.ErrorIs(t, complete.Validate([]PaymentType{PaymentDisbursement}), ErrIncompatiblePaymentType)

	deselected := complete
	for _, line := range complete.ItemLines {
		deselected, err = deselected.ToggleLine(line.RefLineID)
		require.NoError(t, err)
	}
	require.ErrorIs(t, deselected.Validate(accepted), ErrNoLinesSelected)
}
