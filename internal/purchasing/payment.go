package purchasing

import "github.com/procura-hq/procura/internal/catalog/vendors"

// AvailablePaymentTypes derives the payment methods a vendor accepts from
// its boolean flags. The result is ordered for stable JSON output.
func AvailablePaymentTypes(v vendors.Vendor) []PaymentType {
	var types []PaymentType
	if v.AllowsCash {
		types = append(types, PaymentCash)
	}
	if v.AllowsDisbursement {
		types = append(types, PaymentDisbursement)
	}
	if v.AllowsStoreCredit {
		types = append(types, PaymentStoreCredit)
	}
	return types
}

// AcceptsPayment reports whether the payment type is in the vendor's set.
func AcceptsPayment(v vendors.Vendor, t PaymentType) bool {
	switch t {
	case PaymentCash:
		return v.AllowsCash
	case PaymentDisbursement:
		return v.AllowsDisbursement
	case PaymentStoreCredit:
		return v.AllowsStoreCredit
	}
	return false
}
