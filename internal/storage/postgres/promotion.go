package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-promotions/internal/domain/promotion"
)

const (
	promotionColumns = `store_id, id, title, priority, active, valid_from, valid_until, ` + discountColumns

	// The time window is checked by the service against its own clock.
	listActivePromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions WHERE store_id = $1 AND active = TRUE
		ORDER BY priority DESC, id`

	upsertPromotionSQL = `INSERT INTO promotions (store_id, id, title, priority, active, valid_from, valid_until, ` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (store_id, id) DO UPDATE SET
			title = EXCLUDED.title, priority = EXCLUDED.priority, active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			kind = EXCLUDED.kind, value = EXCLUDED.value, spend_amount = EXCLUDED.spend_amount,
			buy_quantity = EXCLUDED.buy_quantity, get_quantity = EXCLUDED.get_quantity, tiers = EXCLUDED.tiers,
			gift_product_ids = EXCLUDED.gift_product_ids, gift_same_product = EXCLUDED.gift_same_product,
			scope = EXCLUDED.scope, scope_product_ids = EXCLUDED.scope_product_ids,
			scope_category_ids = EXCLUDED.scope_category_ids, exclude_product_ids = EXCLUDED.exclude_product_ids,
			exclude_category_ids = EXCLUDED.exclude_category_ids, stackable = EXCLUDED.stackable,
			minimum_amount = EXCLUDED.minimum_amount, minimum_quantity = EXCLUDED.minimum_quantity`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListActive returns the active promotions of a store.
func (r *PromotionRepository) ListActive(ctx context.Context, storeID string) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listActivePromotionsSQL, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// Upsert inserts or replaces a promotion.
func (r *PromotionRepository) Upsert(ctx context.Context, p *promotion.Promotion) error {
	d := p.Discount
	args := []any{p.StoreID, d.ID, d.Title, p.Priority, p.Active, p.ValidFrom, p.ValidUntil}
	if _, err := r.pool.Exec(ctx, upsertPromotionSQL, append(args, discountValues(d)...)...); err != nil {
		return errors.Wrapf(err, "upsert promotion %q", d.ID)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p         promotion.Promotion
		id, title string
		d         discountRow
	)
	dest := []any{&p.StoreID, &id, &title, &p.Priority, &p.Active, &p.ValidFrom, &p.ValidUntil}
	if err := row.Scan(append(dest, d.dest()...)...); err != nil {
		return p, err
	}
	disc, err := d.discount(id, "", title)
	if err != nil {
		return p, err
	}
	p.Discount = disc
	return p, nil
}
