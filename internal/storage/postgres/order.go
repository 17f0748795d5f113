package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/order"
	"github.com/xenking/storefront-promotions/internal/wire"
)

const (
	createOrderSQL = `INSERT INTO orders (id, store_id, email, items, subtotal, discounts, shipping,
		free_shipping, total, coupon_codes, applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderSQL = `SELECT id, store_id, email, items, subtotal, discounts, shipping,
		free_shipping, total, coupon_codes, applied, created_at
		FROM orders WHERE store_id = $1 AND id = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and redeems its coupons in one transaction.
// Items and the discount ledger are stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items := jx.GetEncoder()
	defer jx.PutEncoder(items)
	wire.LineItems(items, o.Items)

	applied := jx.GetEncoder()
	defer jx.PutEncoder(applied)
	wire.AppliedList(applied, o.Applied)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.StoreID, o.Email, items.Bytes(), o.Subtotal, o.Discounts, o.Shipping,
			o.FreeShipping, o.Total, nonNil(o.CouponCodes), applied.Bytes(), o.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "create order %q", o.ID)
		}

		// The coupon row update locks the coupon, so the per-customer count
		// in the following insert sees every committed redemption.
		for _, code := range o.RedeemedCodes() {
			tag, err := tx.Exec(ctx, redeemCouponSQL, o.StoreID, code)
			if err != nil {
				return errors.Wrapf(err, "redeem coupon %q", code)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrCouponUsageLimitReached
			}
			tag, err = tx.Exec(ctx, insertRedemptionSQL, o.StoreID, code, o.Email, o.ID)
			if err != nil {
				return errors.Wrapf(err, "record redemption of %q", code)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrCustomerLimitReached
			}
		}
		return nil
	})
}

// Get returns a stored order.
func (r *OrderRepository) Get(ctx context.Context, storeID, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, storeID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		items, applied []byte
	)
	if err := row.Scan(
		&o.ID, &o.StoreID, &o.Email, &items, &o.Subtotal, &o.Discounts, &o.Shipping,
		&o.FreeShipping, &o.Total, &o.CouponCodes, &applied, &o.CreatedAt,
	); err != nil {
		return o, err
	}

	var err error
	if o.Items, err = wire.DecodeLineItems(jx.DecodeBytes(items)); err != nil {
		return o, errors.Wrap(err, "decode items")
	}
	if o.Applied, err = wire.DecodeAppliedList(jx.DecodeBytes(applied)); err != nil {
		return o, errors.Wrap(err, "decode applied")
	}
	return o, nil
}
