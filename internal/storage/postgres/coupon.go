package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
)

const (
	couponColumns = `store_id, code, id, title, description, active, valid_from, valid_until,
		max_uses, uses, max_uses_per_customer, first_order_only, ` + discountColumns

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE store_id = $1 AND code = $2`

	countRedemptionsSQL = `SELECT COUNT(*) FROM coupon_redemptions
		WHERE store_id = $1 AND code = $2 AND LOWER(email) = LOWER($3)`

	countOrdersSQL = `SELECT COUNT(*) FROM orders WHERE store_id = $1 AND LOWER(email) = LOWER($2)`

	listCouponCodesSQL = `SELECT store_id, code FROM coupons WHERE active = TRUE`

	upsertCouponSQL = `INSERT INTO coupons (store_id, code, id, title, description, active, valid_from, valid_until,
		max_uses, max_uses_per_customer, first_order_only, ` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (store_id, code) DO UPDATE SET
			id = EXCLUDED.id, title = EXCLUDED.title, description = EXCLUDED.description,
			active = EXCLUDED.active, valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses, max_uses_per_customer = EXCLUDED.max_uses_per_customer,
			first_order_only = EXCLUDED.first_order_only, kind = EXCLUDED.kind, value = EXCLUDED.value,
			spend_amount = EXCLUDED.spend_amount, buy_quantity = EXCLUDED.buy_quantity,
			get_quantity = EXCLUDED.get_quantity, tiers = EXCLUDED.tiers,
			gift_product_ids = EXCLUDED.gift_product_ids, gift_same_product = EXCLUDED.gift_same_product,
			scope = EXCLUDED.scope, scope_product_ids = EXCLUDED.scope_product_ids,
			scope_category_ids = EXCLUDED.scope_category_ids, exclude_product_ids = EXCLUDED.exclude_product_ids,
			exclude_category_ids = EXCLUDED.exclude_category_ids, stackable = EXCLUDED.stackable,
			minimum_amount = EXCLUDED.minimum_amount, minimum_quantity = EXCLUDED.minimum_quantity`

	// redeemCouponSQL consumes one use unless the limit is reached.
	redeemCouponSQL = `UPDATE coupons SET uses = uses + 1
		WHERE store_id = $1 AND code = $2 AND (max_uses = 0 OR uses < max_uses)`

	// insertRedemptionSQL records a redemption unless the customer already
	// reached max_uses_per_customer. Anonymous orders are not limited.
	insertRedemptionSQL = `INSERT INTO coupon_redemptions (store_id, code, email, order_id)
		SELECT c.store_id, c.code, $3::text, $4::text FROM coupons c
		WHERE c.store_id = $1 AND c.code = $2
			AND (c.max_uses_per_customer = 0 OR $3::text = '' OR (
				SELECT COUNT(*) FROM coupon_redemptions r
				WHERE r.store_id = $1 AND r.code = $2 AND LOWER(r.email) = LOWER($3)
			) < c.max_uses_per_customer)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code. Returns
// coupon.ErrInvalidCoupon when no coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, storeID, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, storeID, coupon.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

// CountRedemptions counts the redemptions of code by email.
func (r *CouponRepository) CountRedemptions(ctx context.Context, storeID, code, email string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countRedemptionsSQL, storeID, code, email).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count redemptions")
	}
	return n, nil
}

// CountOrders counts the orders email placed in the store.
func (r *CouponRepository) CountOrders(ctx context.Context, storeID, email string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersSQL, storeID, email).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return n, nil
}

// ListCodes returns the keys of every active coupon.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]coupon.Key, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.Key, error) {
		var k coupon.Key
		err := row.Scan(&k.StoreID, &k.Code)
		return k, err
	})
}

// Upsert inserts or replaces a coupon definition. The usage counter of an
// existing coupon is preserved.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, upsertCouponArgs(rule)...); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", rule.Code())
	}
	return nil
}

// UpsertBatch upserts rules in a single round trip.
func (r *CouponRepository) UpsertBatch(ctx context.Context, rules []*coupon.Rule) error {
	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(upsertCouponSQL, upsertCouponArgs(rule)...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "upsert %d coupons", len(rules))
	}
	return nil
}

func upsertCouponArgs(rule *coupon.Rule) []any {
	d := rule.Discount
	args := []any{
		rule.StoreID, coupon.NormalizeCode(d.Code), d.ID, d.Title, rule.Description, rule.Active,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.MaxUsesPerCustomer, rule.FirstOrderOnly,
	}
	return append(args, discountValues(d)...)
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule               coupon.Rule
		code, id, title    string
		validFrom, validTo *time.Time
		d                  discountRow
	)
	dest := []any{
		&rule.StoreID, &code, &id, &title, &rule.Description, &rule.Active, &validFrom, &validTo,
		&rule.MaxUses, &rule.Uses, &rule.MaxUsesPerCustomer, &rule.FirstOrderOnly,
	}
	if err := row.Scan(append(dest, d.dest()...)...); err != nil {
		return rule, err
	}
	rule.ValidFrom = validFrom
	rule.ValidUntil = validTo

	disc, err := d.discount(id, code, title)
	if err != nil {
		return rule, err
	}
	rule.Discount = disc
	return rule, nil
}
