package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/payment"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

// PaymentGateway is the set of processor operations checkout depends on
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
	GetOrder(ctx context.Context, id string) (*payment.Order, error)
}

// CheckoutRequest carries everything needed to turn a cart into a purchase
type CheckoutRequest struct {
	AddressID        uuid.UUID
	PaymentMethod    domain.PaymentMethod
	Installments     int
	SelectedShipping map[uuid.UUID]domain.ShippingOption // by store id
}

type checkoutService struct {
	repos   *repository.Repositories
	gateway PaymentGateway
	logger  *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(repos *repository.Repositories, gateway PaymentGateway, logger *zap.Logger) *checkoutService {
	return &checkoutService{
		repos:   repos,
		gateway: gateway,
		logger:  logger,
	}
}

// CreatePurchase validates the cart and shipping selections, creates the
// purchase with its per-store sales and consumed cart lines in one
// transaction, and for instant methods obtains the processor charge.
//
// If the charge call fails the purchase still exists in waiting_payment:
// the returned purchase is non-nil alongside an ErrUpstream, and the caller
// retries through ObtainCharge without re-creating anything.
func (s *checkoutService) CreatePurchase(ctx context.Context, buyer *domain.User, req CheckoutRequest) (*domain.Purchase, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, &errors.ErrValidation{Message: "unknown payment method", Fields: map[string]string{"payment_method": string(req.PaymentMethod)}}
	}
	installments := 0
	if req.PaymentMethod == domain.PaymentMethodCreditCard {
		if req.Installments < 1 {
			return nil, &errors.ErrValidation{Message: "installments required for credit card", Fields: map[string]string{"installments": "must be at least 1"}}
		}
		installments = req.Installments
	}

	lines, err := s.repos.Cart.ListActiveByBuyer(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &errors.ErrValidation{Message: "cart is empty"}
	}

	address, err := s.repos.Address.GetByID(ctx, req.AddressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != buyer.ID {
		return nil, &errors.ErrValidation{Message: "address does not belong to buyer", Fields: map[string]string{"address_id": req.AddressID.String()}}
	}

	// Every store in the cart needs a shipping selection. Quotes are never
	// persisted, so the selection map is the only record of what the buyer
	// chose; selected prices are trusted as-is.
	groups := GroupCartByStore(lines)
	var missing []string
	for _, group := range groups {
		if _, ok := req.SelectedShipping[group.StoreID]; !ok {
			missing = append(missing, group.StoreName)
		}
	}
	if len(missing) > 0 {
		return nil, &errors.ErrIncompleteShippingSelection{MissingStores: missing}
	}

	var productAmount, shippingFee int64
	for _, line := range lines {
		productAmount += line.Subtotal()
	}
	for _, group := range groups {
		shippingFee += req.SelectedShipping[group.StoreID].Price
	}

	purchase := &domain.Purchase{
		ID:            uuid.New(),
		BuyerID:       buyer.ID,
		ProductAmount: productAmount,
		ShippingFee:   shippingFee,
		PaymentMethod: req.PaymentMethod,
		Installments:  installments,
		AddressID:     address.ID,
		Status:        domain.PurchaseStatusWaitingPayment,
	}

	sales := make([]*domain.StoreSale, 0, len(lines))
	lineIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		sales = append(sales, &domain.StoreSale{
			PurchaseID:    purchase.ID,
			StoreID:       line.StoreID,
			BuyerID:       buyer.ID,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			Amount:        line.Subtotal(),
			PaymentMethod: req.PaymentMethod,
			Installments:  installments,
			Status:        domain.PurchaseStatusWaitingPayment,
		})
		lineIDs = append(lineIDs, line.ID)
	}

	s.logger.Info("Creating purchase",
		zap.String("buyer_id", buyer.ID.String()),
		zap.Int("line_count", len(lines)),
		zap.Int64("product_amount", productAmount),
		zap.Int64("shipping_fee", shippingFee),
	)
	if err := s.repos.Purchase.CreateWithSales(ctx, purchase, sales, lineIDs); err != nil {
		s.logger.Error("Failed to create purchase", zap.Error(err))
		return nil, err
	}

	if req.PaymentMethod.RequiresInstantCharge() {
		if err := s.obtainChargeFor(ctx, buyer, address, purchase); err != nil {
			// Purchase stays in waiting_payment; caller retries via ObtainCharge
			s.logger.Warn("Charge creation failed, purchase left resumable",
				zap.String("purchase_id", purchase.ID.String()),
				zap.Error(err),
			)
			return purchase, &errors.ErrUpstream{Service: "payment processor", Err: err}
		}
	}

	return purchase, nil
}

// ObtainCharge obtains the processor order reference for an existing
// waiting_payment purchase. Idempotent: a purchase that already has its
// reference is returned unchanged.
func (s *checkoutService) ObtainCharge(ctx context.Context, buyer *domain.User, purchaseID uuid.UUID) (*domain.Purchase, error) {
	purchase, err := s.repos.Purchase.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != buyer.ID {
		return nil, &errors.ErrNotFound{Resource: "purchase", ID: purchaseID.String()}
	}
	if purchase.ExternalOrderID != nil {
		return purchase, nil
	}
	if purchase.Status != domain.PurchaseStatusWaitingPayment {
		return nil, &errors.ErrValidation{Message: "purchase is no longer awaiting payment"}
	}

	address, err := s.repos.Address.GetByID(ctx, purchase.AddressID)
	if err != nil {
		return nil, err
	}

	if err := s.obtainChargeFor(ctx, buyer, address, purchase); err != nil {
		return purchase, &errors.ErrUpstream{Service: "payment processor", Err: err}
	}

	return purchase, nil
}

func (s *checkoutService) obtainChargeFor(ctx context.Context, buyer *domain.User, address *domain.Address, purchase *domain.Purchase) error {
	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		ReferenceID:   purchase.ID.String(),
		Amount:        purchase.ProductAmount + purchase.ShippingFee,
		PaymentMethod: purchase.PaymentMethod,
		Installments:  purchase.Installments,
		BuyerName:     buyer.Name,
		BuyerEmail:    buyer.Email,
		BuyerPhone:    buyer.Phone,
		Address: payment.AddressPayload{
			Street:       address.Street,
			Number:       address.Number,
			Neighborhood: address.Neighborhood,
			City:         address.City,
			State:        address.State,
			PostalCode:   address.PostalCode,
		},
	})
	if err != nil {
		return err
	}

	var qr *string
	if order.PixQRCode != "" {
		qr = &order.PixQRCode
	}
	if err := s.repos.Purchase.SetExternalOrder(ctx, purchase.ID, order.ID, qr, order.PixExpiresAt); err != nil {
		return err
	}

	purchase.ExternalOrderID = &order.ID
	purchase.PixQRCode = qr
	purchase.PixExpiresAt = order.PixExpiresAt
	return nil
}

// CheckPayment polls the processor for the purchase's charge and transitions
// the purchase (and its sales, in lock-step) to paid when the processor
// reports it. Idempotent: an already-paid purchase returns as-is.
func (s *checkoutService) CheckPayment(ctx context.Context, buyer *domain.User, purchaseID uuid.UUID) (*domain.Purchase, error) {
	purchase, err := s.repos.Purchase.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != buyer.ID {
		return nil, &errors.ErrNotFound{Resource: "purchase", ID: purchaseID.String()}
	}
	if purchase.Status != domain.PurchaseStatusWaitingPayment {
		return purchase, nil
	}
	if purchase.ExternalOrderID == nil {
		return nil, &errors.ErrValidation{Message: "purchase has no charge to check"}
	}

	order, err := s.gateway.GetOrder(ctx, *purchase.ExternalOrderID)
	if err != nil {
		return purchase, &errors.ErrUpstream{Service: "payment processor", Err: err}
	}
	if order.Status != "paid" {
		return purchase, nil
	}

	if !purchase.Status.CanTransitionTo(domain.PurchaseStatusPaid) {
		return nil, &errors.ErrInvalidStateTransition{From: purchase.Status, To: domain.PurchaseStatusPaid}
	}
	if err := s.repos.Purchase.UpdateStatus(ctx, purchase.ID, domain.PurchaseStatusPaid); err != nil {
		return nil, err
	}
	purchase.Status = domain.PurchaseStatusPaid

	return purchase, nil
}

// CancelPurchase cancels a waiting_payment purchase. Idempotent: an
// already-canceled purchase returns success.
func (s *checkoutService) CancelPurchase(ctx context.Context, buyer *domain.User, purchaseID uuid.UUID) error {
	purchase, err := s.repos.Purchase.GetByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	if purchase.BuyerID != buyer.ID {
		return &errors.ErrNotFound{Resource: "purchase", ID: purchaseID.String()}
	}
	if purchase.Status == domain.PurchaseStatusCanceled {
		return nil
	}
	if !purchase.Status.CanTransitionTo(domain.PurchaseStatusCanceled) {
		return &errors.ErrInvalidStateTransition{From: purchase.Status, To: domain.PurchaseStatusCanceled}
	}

	return s.repos.Purchase.UpdateStatus(ctx, purchaseID, domain.PurchaseStatusCanceled)
}
