package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/domain"
	"github.com/vitrineshop/marketapi/internal/shipping"
)

// RateCalculator is the shipping aggregator operation the quote fan-out
// depends on
type RateCalculator interface {
	Calculate(ctx context.Context, fromPostal, toPostal string, pkg shipping.Package) ([]domain.ShippingOption, error)
}

type shippingService struct {
	calculator   RateCalculator
	originPostal string
	logger       *zap.Logger
}

// NewShippingService creates a new shipping quote service
func NewShippingService(calculator RateCalculator, originPostal string, logger *zap.Logger) *shippingService {
	return &shippingService{
		calculator:   calculator,
		originPostal: originPostal,
		logger:       logger,
	}
}

// QuoteByStore partitions the cart lines by store, requests one quote per
// store concurrently and joins the results. A failure quoting one store
// marks only that store's group; every store always gets a group back,
// ordered by store id so repeated renders are stable.
func (s *shippingService) QuoteByStore(ctx context.Context, destination *domain.Address, lines []*domain.CartLine) []*domain.StoreShippingGroup {
	groups := GroupCartByStore(lines)

	var wg sync.WaitGroup
	for i := range groups {
		wg.Add(1)
		go func(group *domain.StoreShippingGroup) {
			defer wg.Done()
			s.quoteGroup(ctx, destination, group)
		}(groups[i])
	}
	wg.Wait()

	return groups
}

func (s *shippingService) quoteGroup(ctx context.Context, destination *domain.Address, group *domain.StoreShippingGroup) {
	options, err := s.calculator.Calculate(ctx, s.originPostal, destination.PostalCode, packageForLines(group.Lines))
	if err != nil {
		s.logger.Warn("Shipping quote failed for store",
			zap.String("store_id", group.StoreID.String()),
			zap.Error(err),
		)
		group.HasError = true
		group.ErrorMessage = "could not get shipping options for this store, please try again"
		return
	}
	if len(options) == 0 {
		group.HasError = true
		group.ErrorMessage = "no shipping options available for this store"
		return
	}
	group.Options = options
}

// GroupCartByStore partitions cart lines into per-store groups ordered by
// store id. Every line lands in exactly one group.
func GroupCartByStore(lines []*domain.CartLine) []*domain.StoreShippingGroup {
	byStore := make(map[uuid.UUID]*domain.StoreShippingGroup)
	for _, line := range lines {
		group, ok := byStore[line.StoreID]
		if !ok {
			group = &domain.StoreShippingGroup{
				StoreID:   line.StoreID,
				StoreName: line.StoreName,
			}
			byStore[line.StoreID] = group
		}
		group.Lines = append(group.Lines, line)
	}

	groups := make([]*domain.StoreShippingGroup, 0, len(byStore))
	for _, group := range byStore {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].StoreID.String() < groups[j].StoreID.String()
	})

	return groups
}

// packageForLines derives a package descriptor from a store group's items.
// The aggregator only needs a rough descriptor; per-item dimensions are the
// aggregator's own concern.
func packageForLines(lines []*domain.CartLine) shipping.Package {
	totalQty := 0
	var declared int64
	for _, line := range lines {
		totalQty += line.Quantity
		declared += line.Subtotal()
	}
	if totalQty < 1 {
		totalQty = 1
	}

	return shipping.Package{
		WeightGrams:   500 * totalQty,
		LengthCm:      20,
		WidthCm:       16,
		HeightCm:      4 * totalQty,
		DeclaredValue: declared,
	}
}
