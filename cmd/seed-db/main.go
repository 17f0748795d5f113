package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/auth"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/product"
	"github.com/xenking/storefront-promotions/internal/domain/promotion"
	"github.com/xenking/storefront-promotions/internal/storage/postgres"
	"github.com/xenking/storefront-promotions/internal/wire"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		storeID      string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&storeID, "store-id", "demo", "store the seeded catalog, discounts and key belong to")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, storeID, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, storeID, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), storeID, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), storeID); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedPromotions(ctx, postgres.NewPromotionRepository(pool), storeID); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), storeID, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, storeID, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	products, err := decodeProducts(data, storeID)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for i := range products {
		p := &products[i]
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func decodeProducts(data []byte, storeID string) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p := product.Product{StoreID: storeID}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "price":
				p.Price, err = wire.DecodeDecimal(d)
			case "category":
				p.CategoryID, err = d.Str()
			case "image":
				err = d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "thumbnail":
						p.Image.Thumbnail, err = d.Str()
					case "mobile":
						p.Image.Mobile, err = d.Str()
					case "tablet":
						p.Image.Tablet, err = d.Str()
					case "desktop":
						p.Image.Desktop, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		if p.ID == "" {
			return errors.New("product without id")
		}
		products = append(products, p)
		return nil
	})
	return products, err
}

func demoCoupons(storeID string) []*coupon.Rule {
	d := func(code, title string, shape discount.Shape, scope discount.Scope) discount.Discount {
		if scope.Kind == "" {
			scope.Kind = discount.ScopeAll
		}
		return discount.Discount{ID: storeID + ":" + code, Code: code, Title: title, Shape: shape, Scope: scope}
	}

	happy := d("HAPPYHOURS", "Happy Hours: 18% off entire order",
		discount.Percentage{Percent: decimal.NewFromInt(18)}, discount.Scope{})

	bogo := d("BUYGETONE", "Buy one get one free",
		discount.BuyXGetY{BuyQuantity: 2, GetQuantity: 1}, discount.Scope{})

	waffles := d("WAFFLE3", "3 waffles for 15",
		discount.BuyXPayY{BuyQuantity: 3, PayAmount: decimal.NewFromInt(15)},
		discount.Scope{Kind: discount.ScopeCategory, CategoryIDs: []string{"waffle"}})

	welcome := d("WELCOME5", "5 off your first order",
		discount.FixedAmount{Amount: decimal.NewFromInt(5)}, discount.Scope{})
	welcome.MinimumAmount = decimal.NewNullDecimal(decimal.NewFromInt(20))

	ship := d("SHIPFREE", "Free shipping", discount.FreeShipping{}, discount.Scope{})
	ship.Stackable = true

	gift := d("GIFT25", "Gift card", discount.GiftCard{Balance: decimal.NewFromInt(25)}, discount.Scope{})
	gift.Stackable = true

	return []*coupon.Rule{
		{StoreID: storeID, Discount: happy, Description: happy.Title, Active: true},
		{StoreID: storeID, Discount: bogo, Description: bogo.Title, Active: true, MaxUses: 1000},
		{StoreID: storeID, Discount: waffles, Description: waffles.Title, Active: true},
		{StoreID: storeID, Discount: welcome, Description: welcome.Title, Active: true, FirstOrderOnly: true},
		{StoreID: storeID, Discount: ship, Description: ship.Title, Active: true, MaxUsesPerCustomer: 3},
		{StoreID: storeID, Discount: gift, Description: gift.Title, Active: true, MaxUses: 1},
	}
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, storeID string) error {
	slog.Info("seeding demo coupons")

	rules := demoCoupons(storeID)
	if err := repo.UpsertBatch(ctx, rules); err != nil {
		return err
	}
	for _, r := range rules {
		slog.Info("upserted coupon", slog.String("code", r.Code()), slog.String("description", r.Description))
	}
	return nil
}

func demoPromotions(storeID string) []*promotion.Promotion {
	members := discount.Discount{
		ID:    storeID + ":members",
		Title: "Members save 5%",
		Shape: discount.Percentage{Percent: decimal.NewFromInt(5)},
		Scope: discount.Scope{Kind: discount.ScopeMember},
	}
	bulk := discount.Discount{
		ID:    storeID + ":bulk-macarons",
		Title: "Macaron volume pricing",
		Shape: discount.QuantityTiered{Tiers: []discount.Tier{
			{MinQuantity: 3, DiscountPercent: decimal.NewFromInt(10)},
			{MinQuantity: 6, DiscountPercent: decimal.NewFromInt(20)},
		}},
		Scope:     discount.Scope{Kind: discount.ScopeCategory, CategoryIDs: []string{"macaron"}},
		Stackable: true,
	}
	spend := discount.Discount{
		ID:    storeID + ":free-shipping-50",
		Title: "Free shipping over 50",
		Shape: discount.FreeShipping{},
		Scope: discount.Scope{Kind: discount.ScopeAll},

		MinimumAmount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
		Stackable:     true,
	}

	return []*promotion.Promotion{
		{StoreID: storeID, Discount: bulk, Priority: 20, Active: true},
		{StoreID: storeID, Discount: members, Priority: 10, Active: true},
		{StoreID: storeID, Discount: spend, Priority: 0, Active: true},
	}
}

func seedPromotions(ctx context.Context, repo *postgres.PromotionRepository, storeID string) error {
	slog.Info("seeding demo promotions")

	for _, p := range demoPromotions(storeID) {
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		slog.Info("upserted promotion", slog.String("id", p.Discount.ID), slog.Int("priority", p.Priority))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, storeID, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	info := &auth.APIKeyInfo{
		ID:      storeID + "-default",
		KeyHash: auth.Hash([]byte(pepper), apiKey),
		Name:    "Default key",
		StoreID: storeID,
		Scopes:  []string{"pricing", "orders"},
	}
	if err := repo.Create(ctx, info); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("store_id", storeID))
	return nil
}
