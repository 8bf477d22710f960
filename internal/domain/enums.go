package domain

// PurchaseStatus represents the status shared by a purchase and its sales
type PurchaseStatus string

const (
	// WAITING_PAYMENT - purchase created, charge not confirmed
	PurchaseStatusWaitingPayment PurchaseStatus = "waiting_payment"
	// PAID - processor confirmed payment
	PurchaseStatusPaid PurchaseStatus = "paid"
	// PROCESSING - sellers preparing the order
	PurchaseStatusProcessing PurchaseStatus = "processing"
	// TRANSPORT - packages handed to carriers
	PurchaseStatusTransport PurchaseStatus = "transport"
	// DELIVERED - all packages delivered
	PurchaseStatusDelivered PurchaseStatus = "delivered"
	// CANCELED - abandoned or rejected before payment
	PurchaseStatusCanceled PurchaseStatus = "canceled"
	// REFUNDED - paid purchase refunded
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

// IsValid checks if the purchase status is valid
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusWaitingPayment,
		PurchaseStatusPaid,
		PurchaseStatusProcessing,
		PurchaseStatusTransport,
		PurchaseStatusDelivered,
		PurchaseStatusCanceled,
		PurchaseStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid. Transitions are
// one-directional; there is no path back to an earlier state.
func (s PurchaseStatus) CanTransitionTo(newStatus PurchaseStatus) bool {
	switch s {
	case PurchaseStatusWaitingPayment:
		return newStatus == PurchaseStatusPaid ||
			newStatus == PurchaseStatusCanceled
	case PurchaseStatusPaid:
		return newStatus == PurchaseStatusProcessing ||
			newStatus == PurchaseStatusRefunded
	case PurchaseStatusProcessing:
		return newStatus == PurchaseStatusTransport
	case PurchaseStatusTransport:
		return newStatus == PurchaseStatusDelivered
	case PurchaseStatusDelivered, PurchaseStatusCanceled, PurchaseStatusRefunded:
		return false // Terminal states
	default:
		return false
	}
}

// PaymentMethod represents how a purchase is paid
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodBoleto     PaymentMethod = "boleto"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodBoleto:
		return true
	default:
		return false
	}
}

// RequiresInstantCharge reports whether checkout must obtain a processor
// order reference before the purchase can be presented to the buyer
// (PIX QR code, boleto line).
func (m PaymentMethod) RequiresInstantCharge() bool {
	return m == PaymentMethodPix || m == PaymentMethodBoleto
}

// AffiliationStatus represents the seller KYC state with the processor
type AffiliationStatus string

const (
	AffiliationStatusPending  AffiliationStatus = "pending"
	AffiliationStatusApproved AffiliationStatus = "approved"
	AffiliationStatusRefused  AffiliationStatus = "refused"
)

// AffiliationStatusFromExternal maps the processor's recipient status
// vocabulary to the internal three-state enum. Total: unrecognized values
// map to pending, the safe default.
func AffiliationStatusFromExternal(external string) AffiliationStatus {
	switch external {
	case "active":
		return AffiliationStatusApproved
	case "rejected", "inactive":
		return AffiliationStatusRefused
	default:
		return AffiliationStatusPending
	}
}
