package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseStatus_CanTransitionTo(t *testing.T) {
	all := []PurchaseStatus{
		PurchaseStatusWaitingPayment,
		PurchaseStatusPaid,
		PurchaseStatusProcessing,
		PurchaseStatusTransport,
		PurchaseStatusDelivered,
		PurchaseStatusCanceled,
		PurchaseStatusRefunded,
	}

	allowed := map[PurchaseStatus][]PurchaseStatus{
		PurchaseStatusWaitingPayment: {PurchaseStatusPaid, PurchaseStatusCanceled},
		PurchaseStatusPaid:           {PurchaseStatusProcessing, PurchaseStatusRefunded},
		PurchaseStatusProcessing:     {PurchaseStatusTransport},
		PurchaseStatusTransport:      {PurchaseStatusDelivered},
		PurchaseStatusDelivered:      {},
		PurchaseStatusCanceled:       {},
		PurchaseStatusRefunded:       {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPurchaseStatus_NoPathBack(t *testing.T) {
	// Forward order of the happy path; no status may transition to an
	// earlier one, and none may transition to itself.
	path := []PurchaseStatus{
		PurchaseStatusWaitingPayment,
		PurchaseStatusPaid,
		PurchaseStatusProcessing,
		PurchaseStatusTransport,
		PurchaseStatusDelivered,
	}
	for i, from := range path {
		for j := 0; j <= i; j++ {
			assert.False(t, from.CanTransitionTo(path[j]), "%s -> %s should be blocked", from, path[j])
		}
	}
}

func TestPurchaseStatus_IsValid(t *testing.T) {
	assert.True(t, PurchaseStatusWaitingPayment.IsValid())
	assert.True(t, PurchaseStatusRefunded.IsValid())
	assert.False(t, PurchaseStatus("shipped").IsValid())
	assert.False(t, PurchaseStatus("").IsValid())
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentMethodPix.IsValid())
	assert.True(t, PaymentMethodCreditCard.IsValid())
	assert.True(t, PaymentMethodBoleto.IsValid())
	assert.False(t, PaymentMethod("cash").IsValid())
	assert.False(t, PaymentMethod("").IsValid())
}

func TestPaymentMethod_RequiresInstantCharge(t *testing.T) {
	assert.True(t, PaymentMethodPix.RequiresInstantCharge())
	assert.True(t, PaymentMethodBoleto.RequiresInstantCharge())
	assert.False(t, PaymentMethodCreditCard.RequiresInstantCharge())
}

func TestAffiliationStatusFromExternal(t *testing.T) {
	tests := []struct {
		external string
		want     AffiliationStatus
	}{
		{"active", AffiliationStatusApproved},
		{"rejected", AffiliationStatusRefused},
		{"inactive", AffiliationStatusRefused},
		{"registration", AffiliationStatusPending},
		{"affiliation", AffiliationStatusPending},
		{"pending", AffiliationStatusPending},
		{"", AffiliationStatusPending},
		{"some-future-status", AffiliationStatusPending},
		{"ACTIVE", AffiliationStatusPending}, // processor vocabulary is lowercase
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AffiliationStatusFromExternal(tt.external), "external %q", tt.external)
	}
}
