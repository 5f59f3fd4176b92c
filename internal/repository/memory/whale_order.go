package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"whalewatch/internal/domain/whaleorder"
	"whalewatch/pkg/errors"
)

// Compile-time check
var _ whaleorder.Repository = (*WhaleOrderRepository)(nil)

// WhaleOrderRepository is an in-memory whaleorder.Repository with the same
// uniqueness semantics as the postgres store. Used in tests and DB-less runs.
type WhaleOrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*whaleorder.WhaleOrder
	byKey  map[string]uuid.UUID
}

// NewWhaleOrderRepository creates an empty in-memory repository
func NewWhaleOrderRepository() *WhaleOrderRepository {
	return &WhaleOrderRepository{
		orders: make(map[uuid.UUID]*whaleorder.WhaleOrder),
		byKey:  make(map[string]uuid.UUID),
	}
}

func identityKey(o *whaleorder.WhaleOrder) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", o.Exchange, o.Direction, o.Market, o.Price.String(), o.Size.String())
}

// Create inserts a new whale order, enforcing the composite uniqueness
// constraint over {exchange, direction, market, price, size}.
func (r *WhaleOrderRepository) Create(ctx context.Context, o *whaleorder.WhaleOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey(o)
	if _, ok := r.byKey[key]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "whale order %s", o.ID)
	}

	clone := *o
	r.orders[o.ID] = &clone
	r.byKey[key] = o.ID
	return nil
}

// GetByID retrieves a whale order by ID
func (r *WhaleOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*whaleorder.WhaleOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "whale order %s", id)
	}

	clone := *o
	return &clone, nil
}

// GetActive retrieves all active orders for an exchange
func (r *WhaleOrderRepository) GetActive(ctx context.Context, exchange string) ([]*whaleorder.WhaleOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*whaleorder.WhaleOrder
	for _, o := range r.orders {
		if o.Exchange == exchange && o.Status == whaleorder.StatusActive {
			clone := *o
			orders = append(orders, &clone)
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

// UpdateStatus transitions an active order to a terminal status
func (r *WhaleOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status whaleorder.Status, fillPrice *decimal.Decimal) (*whaleorder.WhaleOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != whaleorder.StatusActive {
		return nil, errors.Wrapf(errors.ErrNotFound, "active whale order %s", id)
	}

	o.Status = status
	if status == whaleorder.StatusFilled {
		now := time.Now().UTC()
		o.FilledAt = &now
		o.FillPrice = fillPrice
	}

	clone := *o
	return &clone, nil
}

// Find retrieves orders matching the filter
func (r *WhaleOrderRepository) Find(ctx context.Context, f whaleorder.Filter) ([]*whaleorder.WhaleOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*whaleorder.WhaleOrder
	for _, o := range r.orders {
		if !matches(o, f) {
			continue
		}
		clone := *o
		orders = append(orders, &clone)
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })

	if f.Limit > 0 && len(orders) > f.Limit {
		orders = orders[:f.Limit]
	}
	return orders, nil
}

func matches(o *whaleorder.WhaleOrder, f whaleorder.Filter) bool {
	if f.Exchange != "" && o.Exchange != f.Exchange {
		return false
	}
	if f.Direction != "" && o.Direction != f.Direction {
		return false
	}
	if f.Market != "" && o.Market != f.Market {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.MinSize > 0 && o.SizeF() < f.MinSize {
		return false
	}
	if f.MinPrice > 0 && o.PriceF() < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && o.PriceF() > f.MaxPrice {
		return false
	}
	if !f.Since.IsZero() && o.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// DeleteOlderThan purges orders created before the retention window
func (r *WhaleOrderRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)

	var ids []uuid.UUID
	for id, o := range r.orders {
		if o.CreatedAt.Before(cutoff) {
			delete(r.byKey, identityKey(o))
			delete(r.orders, id)
			ids = append(ids, id)
		}
	}

	return ids, nil
}
