package whaleorder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"whalewatch/pkg/errors"
)

// Filter narrows Repository queries. Zero values mean "no constraint".
type Filter struct {
	Exchange  string
	Direction Direction
	Market    Market
	Status    Status
	MinSize   float64
	MinPrice  float64
	MaxPrice  float64
	Since     time.Time
	Limit     int
}

// Validate rejects filters with unknown enum values. Empty values pass, they
// mean "no constraint".
func (f Filter) Validate() error {
	if f.Direction != "" && !f.Direction.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "direction %q", f.Direction)
	}
	if f.Market != "" && !f.Market.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "market %q", f.Market)
	}
	if f.Status != "" && !f.Status.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "status %q", f.Status)
	}
	return nil
}

// Repository defines the persistence contract for whale orders.
//
// Create must enforce a uniqueness constraint over
// {exchange, direction, market, price, size} and return
// errors.ErrAlreadyExists on violation; concurrent poll cycles rely on this
// as the final backstop against duplicate creation.
type Repository interface {
	Create(ctx context.Context, o *WhaleOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*WhaleOrder, error)
	GetActive(ctx context.Context, exchange string) ([]*WhaleOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, fillPrice *decimal.Decimal) (*WhaleOrder, error)
	Find(ctx context.Context, f Filter) ([]*WhaleOrder, error)
	DeleteOlderThan(ctx context.Context, retention time.Duration) ([]uuid.UUID, error)
}
