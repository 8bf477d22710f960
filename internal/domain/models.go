package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a marketplace account (buyer, optionally seller-capable)
type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	APITokenHash   string
	APITokenLookup string // SHA256(token) hex for fast lookup; set on create
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Address is a structured postal address owned by a user.
// Immutable once referenced by a purchase; purchases reference it by id.
type Address struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Street       string
	Number       string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
	Complement   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartLine is one product entry in a buyer's cart. A line is consumed
// (PurchaseID set) when a purchase is created from it and is then excluded
// from all future cart reads; it is never physically deleted before that.
type CartLine struct {
	ID         uuid.UUID
	BuyerID    uuid.UUID
	ProductID  uuid.UUID
	StoreID    uuid.UUID
	StoreName  string
	UnitPrice  int64 // minor currency units (centavos)
	Quantity   int
	Available  bool
	Stock      int
	PurchaseID *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Subtotal returns the line amount in minor units.
func (l *CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// ShippingOption is one quoted rate for a store's package. Quotes are
// session-scoped and never persisted.
type ShippingOption struct {
	ID          string `json:"id"`
	Carrier     string `json:"carrier"`
	Service     string `json:"service"`
	Price       int64  `json:"price"` // minor units
	DeliveryMin int    `json:"delivery_min_days"`
	DeliveryMax int    `json:"delivery_max_days"`
	Error       string `json:"error,omitempty"`
}

// StoreShippingGroup is the partition of a cart belonging to one store,
// together with that store's quote result. Groups partition the cart: every
// line belongs to exactly one group.
type StoreShippingGroup struct {
	StoreID      uuid.UUID        `json:"store_id"`
	StoreName    string           `json:"store_name"`
	Lines        []*CartLine      `json:"-"`
	Options      []ShippingOption `json:"options"`
	HasError     bool             `json:"has_error"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// Purchase is the aggregate record for one checkout across all stores.
// Created atomically with its StoreSale children; its status and every
// child's status are equal at every observation point.
type Purchase struct {
	ID              uuid.UUID
	BuyerID         uuid.UUID
	ProductAmount   int64 // sum of consumed line subtotals, minor units
	ShippingFee     int64 // sum of selected shipping option prices
	PaymentMethod   PaymentMethod
	Installments    int // credit card only; 0 otherwise
	AddressID       uuid.UUID
	ExternalOrderID *string // processor order reference, nil until obtained
	PixQRCode       *string
	PixExpiresAt    *time.Time
	Status          PurchaseStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StoreSale is the per-store child of a Purchase. Status mirrors the parent
// and transitions in lock-step with it.
type StoreSale struct {
	ID            uuid.UUID
	PurchaseID    uuid.UUID
	StoreID       uuid.UUID
	BuyerID       uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	Amount        int64 // unit price x quantity, minor units
	PaymentMethod PaymentMethod
	Installments  int
	Status        PurchaseStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AffiliationAccount is the one-per-seller KYC record with the payment
// processor. Mutated only by the webhook processor; never deleted, only
// transitioned.
type AffiliationAccount struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ExternalID     string // processor recipient reference
	Status         AffiliationStatus
	AffiliationURL *string
	LastWebhookAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IdempotencyKey stores checkout replay information
type IdempotencyKey struct {
	Key         string
	BuyerID     uuid.UUID
	PurchaseID  uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}
