package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/payment"
	"github.com/vitrineshop/marketapi/internal/repository"
	"github.com/vitrineshop/marketapi/pkg/errors"
)

// memStore is an in-memory stand-in for the postgres repositories so the
// services can be tested without a database.
type memStore struct {
	mu sync.Mutex

	users     map[uuid.UUID]*domain.User
	addresses map[uuid.UUID]*domain.Address
	lines     map[uuid.UUID]*domain.CartLine
	purchases map[uuid.UUID]*domain.Purchase
	sales     map[uuid.UUID][]*domain.StoreSale
	accounts  map[string]*domain.AffiliationAccount // by external id
	idemKeys  map[string]*domain.IdempotencyKey

	failCreateWithSales error
	failApplyWebhook    error
	webhookUpdates      int

	// invoked at the top of CreateWithSales, before the consumed check;
	// lets tests interleave a competing writer between the cart read and
	// the transactional write
	beforeCreateWithSales func()
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]*domain.User),
		addresses: make(map[uuid.UUID]*domain.Address),
		lines:     make(map[uuid.UUID]*domain.CartLine),
		purchases: make(map[uuid.UUID]*domain.Purchase),
		sales:     make(map[uuid.UUID][]*domain.StoreSale),
		accounts:  make(map[string]*domain.AffiliationAccount),
		idemKeys:  make(map[string]*domain.IdempotencyKey),
	}
}

func (s *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		User:           &memUserRepo{s},
		Address:        &memAddressRepo{s},
		Cart:           &memCartRepo{s},
		Purchase:       &memPurchaseRepo{s},
		StoreSale:      &memStoreSaleRepo{s},
		Affiliation:    &memAffiliationRepo{s},
		IdempotencyKey: &memIdempotencyRepo{s},
	}
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) GetByAPIToken(_ context.Context, token string) (*domain.User, error) {
	return nil, &errors.ErrUnauthorized{}
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return nil, &errors.ErrNotFound{Resource: "user", ID: id.String()}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = user
	return nil
}

type memAddressRepo struct{ s *memStore }

func (r *memAddressRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.addresses[id]; ok {
		return a, nil
	}
	return nil, &errors.ErrNotFound{Resource: "address", ID: id.String()}
}

func (r *memAddressRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Address
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAddressRepo) Create(_ context.Context, address *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}
	r.s.addresses[address.ID] = address
	return nil
}

type memCartRepo struct{ s *memStore }

func (r *memCartRepo) ListActiveByBuyer(_ context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.CartLine
	for _, line := range r.s.lines {
		if line.BuyerID == buyerID && line.PurchaseID == nil {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memCartRepo) AddLine(_ context.Context, line *domain.CartLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	r.s.lines[line.ID] = line
	return nil
}

func (r *memCartRepo) UpdateQuantity(_ context.Context, buyerID, lineID uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	line, ok := r.s.lines[lineID]
	if !ok || line.BuyerID != buyerID || line.PurchaseID != nil {
		return &errors.ErrNotFound{Resource: "cart line", ID: lineID.String()}
	}
	line.Quantity = quantity
	return nil
}

type memPurchaseRepo struct{ s *memStore }

// CreateWithSales mirrors the postgres transaction: all-or-nothing, with
// the already-consumed check acting as the concurrency gate.
func (r *memPurchaseRepo) CreateWithSales(_ context.Context, purchase *domain.Purchase, sales []*domain.StoreSale, lineIDs []uuid.UUID) error {
	if r.s.beforeCreateWithSales != nil {
		r.s.beforeCreateWithSales()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreateWithSales != nil {
		return r.s.failCreateWithSales
	}
	for _, id := range lineIDs {
		line, ok := r.s.lines[id]
		if !ok || line.PurchaseID != nil {
			return &errors.ErrConflict{Message: "one or more cart lines were already consumed by another purchase"}
		}
	}
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	for _, id := range lineIDs {
		pid := purchase.ID
		r.s.lines[id].PurchaseID = &pid
	}
	r.s.purchases[purchase.ID] = purchase
	for _, sale := range sales {
		if sale.ID == uuid.Nil {
			sale.ID = uuid.New()
		}
		r.s.sales[purchase.ID] = append(r.s.sales[purchase.ID], sale)
	}
	return nil
}

func (r *memPurchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.purchases[id]; ok {
		return p, nil
	}
	return nil, &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
}

func (r *memPurchaseRepo) ListByBuyerID(_ context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Purchase
	for _, p := range r.s.purchases {
		if p.BuyerID == buyerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPurchaseRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PurchaseStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.purchases[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
	}
	p.Status = status
	for _, sale := range r.s.sales[id] {
		sale.Status = status
	}
	return nil
}

func (r *memPurchaseRepo) SetExternalOrder(_ context.Context, id uuid.UUID, externalOrderID string, pixQRCode *string, pixExpiresAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.purchases[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "purchase", ID: id.String()}
	}
	p.ExternalOrderID = &externalOrderID
	p.PixQRCode = pixQRCode
	p.PixExpiresAt = pixExpiresAt
	return nil
}

type memStoreSaleRepo struct{ s *memStore }

func (r *memStoreSaleRepo) GetByPurchaseID(_ context.Context, purchaseID uuid.UUID) ([]*domain.StoreSale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sales[purchaseID], nil
}

func (r *memStoreSaleRepo) ListByStoreID(_ context.Context, storeID uuid.UUID, limit, offset int) ([]*domain.StoreSale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.StoreSale
	for _, sales := range r.s.sales {
		for _, sale := range sales {
			if sale.StoreID == storeID {
				out = append(out, sale)
			}
		}
	}
	return out, nil
}

type memAffiliationRepo struct{ s *memStore }

func (r *memAffiliationRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.AffiliationAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, account := range r.s.accounts {
		if account.UserID == userID {
			return account, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "affiliation account", ID: userID.String()}
}

func (r *memAffiliationRepo) GetByExternalID(_ context.Context, externalID string) (*domain.AffiliationAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if account, ok := r.s.accounts[externalID]; ok {
		return account, nil
	}
	return nil, &errors.ErrNotFound{Resource: "affiliation account", ID: externalID}
}

func (r *memAffiliationRepo) Create(_ context.Context, account *domain.AffiliationAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	r.s.accounts[account.ExternalID] = account
	return nil
}

func (r *memAffiliationRepo) ApplyWebhookUpdate(_ context.Context, externalID string, status domain.AffiliationStatus, affiliationURL *string, receivedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failApplyWebhook != nil {
		return r.s.failApplyWebhook
	}
	account, ok := r.s.accounts[externalID]
	if !ok {
		return &errors.ErrNotFound{Resource: "affiliation account", ID: externalID}
	}
	account.Status = status
	if affiliationURL != nil {
		account.AffiliationURL = affiliationURL
	}
	account.LastWebhookAt = &receivedAt
	r.s.webhookUpdates++
	return nil
}

type memIdempotencyRepo struct{ s *memStore }

func (r *memIdempotencyRepo) GetByKey(_ context.Context, key string) (*domain.IdempotencyKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.idemKeys[key], nil
}

func (r *memIdempotencyRepo) Create(_ context.Context, key *domain.IdempotencyKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.idemKeys[key.Key] = key
	return nil
}

// fakeGateway implements PaymentGateway and RecipientGateway
type fakeGateway struct {
	mu            sync.Mutex
	orderCalls    int
	failOrders    bool
	orderStatus   string
	recipient     *payment.Recipient
	failRecipient bool
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderCalls++
	if g.failOrders {
		return nil, fmt.Errorf("processor unreachable")
	}
	qr := "00020126pix-payload"
	exp := time.Now().Add(30 * time.Minute)
	return &payment.Order{ID: "or_" + req.ReferenceID[:8], Status: "pending", PixQRCode: qr, PixExpiresAt: &exp}, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOrders {
		return nil, fmt.Errorf("processor unreachable")
	}
	status := g.orderStatus
	if status == "" {
		status = "pending"
	}
	return &payment.Order{ID: id, Status: status}, nil
}

func (g *fakeGateway) CreateRecipient(_ context.Context, req payment.RecipientRequest) (*payment.Recipient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRecipient {
		return nil, fmt.Errorf("processor unreachable")
	}
	if g.recipient != nil {
		return g.recipient, nil
	}
	return &payment.Recipient{ID: "rp_new", Status: "pending", AffiliationURL: "https://kyc.example/rp_new"}, nil
}
