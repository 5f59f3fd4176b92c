package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"whalewatch/internal/domain/whaleorder"
	"whalewatch/pkg/errors"
)

// Compile-time check
var _ whaleorder.Repository = (*WhaleOrderRepository)(nil)

// Schema for the whale_orders table. The composite unique constraint is the
// final backstop against duplicate creation by concurrent poll cycles.
const Schema = `
CREATE TABLE IF NOT EXISTS whale_orders (
	id         UUID PRIMARY KEY,
	exchange   TEXT        NOT NULL,
	direction  TEXT        NOT NULL,
	market     TEXT        NOT NULL,
	size       NUMERIC     NOT NULL CHECK (size > 0),
	price      NUMERIC     NOT NULL CHECK (price > 0),
	status     TEXT        NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	filled_at  TIMESTAMPTZ,
	fill_price NUMERIC,
	CONSTRAINT whale_orders_identity UNIQUE (exchange, direction, market, price, size)
);
CREATE INDEX IF NOT EXISTS whale_orders_active_idx ON whale_orders (exchange, status);
CREATE INDEX IF NOT EXISTS whale_orders_created_idx ON whale_orders (created_at);
`

// WhaleOrderRepository implements whaleorder.Repository using sqlx
type WhaleOrderRepository struct {
	db *sqlx.DB
}

// NewWhaleOrderRepository creates a new whale order repository
func NewWhaleOrderRepository(db *sqlx.DB) *WhaleOrderRepository {
	return &WhaleOrderRepository{db: db}
}

// InitSchema creates the whale_orders table if it does not exist
func (r *WhaleOrderRepository) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Create inserts a new whale order. A unique-constraint violation maps to
// errors.ErrAlreadyExists so callers can treat it as a benign duplicate skip.
func (r *WhaleOrderRepository) Create(ctx context.Context, o *whaleorder.WhaleOrder) error {
	query := `
		INSERT INTO whale_orders (
			id, exchange, direction, market,
			size, price, status,
			created_at, filled_at, fill_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.Exchange, o.Direction, o.Market,
		o.Size, o.Price, o.Status,
		o.CreatedAt, o.FilledAt, o.FillPrice,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.Wrapf(errors.ErrAlreadyExists, "whale order %s", o.ID)
		}
		return err
	}

	return nil
}

// GetByID retrieves a whale order by ID
func (r *WhaleOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*whaleorder.WhaleOrder, error) {
	var o whaleorder.WhaleOrder

	query := `SELECT * FROM whale_orders WHERE id = $1`

	if err := r.db.GetContext(ctx, &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "whale order %s", id)
		}
		return nil, err
	}

	return &o, nil
}

// GetActive retrieves all active orders for an exchange
func (r *WhaleOrderRepository) GetActive(ctx context.Context, exchange string) ([]*whaleorder.WhaleOrder, error) {
	var orders []*whaleorder.WhaleOrder

	query := `SELECT * FROM whale_orders WHERE exchange = $1 AND status = $2 ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &orders, query, exchange, whaleorder.StatusActive); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus transitions an order to a terminal status and returns the
// updated entity. For filled orders the fill price and fill time are set.
func (r *WhaleOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status whaleorder.Status, fillPrice *decimal.Decimal) (*whaleorder.WhaleOrder, error) {
	var filledAt *time.Time
	if status == whaleorder.StatusFilled {
		now := time.Now().UTC()
		filledAt = &now
	}

	query := `
		UPDATE whale_orders
		SET status = $2, filled_at = $3, fill_price = $4
		WHERE id = $1 AND status = $5
		RETURNING *`

	var o whaleorder.WhaleOrder
	err := r.db.QueryRowxContext(ctx, query, id, status, filledAt, fillPrice, whaleorder.StatusActive).StructScan(&o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "active whale order %s", id)
		}
		return nil, err
	}

	return &o, nil
}

// Find retrieves orders matching the filter
func (r *WhaleOrderRepository) Find(ctx context.Context, f whaleorder.Filter) ([]*whaleorder.WhaleOrder, error) {
	var (
		conds []string
		args  []interface{}
	)

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Exchange != "" {
		add("exchange = $%d", f.Exchange)
	}
	if f.Direction != "" {
		add("direction = $%d", f.Direction)
	}
	if f.Market != "" {
		add("market = $%d", f.Market)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.MinSize > 0 {
		add("size >= $%d", f.MinSize)
	}
	if f.MinPrice > 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= $%d", f.MaxPrice)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}

	query := `SELECT * FROM whale_orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var orders []*whaleorder.WhaleOrder
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}

	return orders, nil
}

// DeleteOlderThan purges orders created before the retention window and
// returns their ids so in-memory indexes can be cleaned up too.
func (r *WhaleOrderRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) ([]uuid.UUID, error) {
	cutoff := time.Now().UTC().Add(-retention)

	query := `DELETE FROM whale_orders WHERE created_at < $1 RETURNING id`

	rows, err := r.db.QueryxContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
