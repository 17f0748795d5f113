package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent GC pause exceeded threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(p.Ping(ctx), "ping")
	}
}

// RedisCheck fails when the Redis server does not answer PING.
func RedisCheck(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(client.Ping(ctx).Err(), "redis ping")
	}
}

// engineProbe is a cart whose pricing is known: 10% off 2 x 100 plus a
// buy 2 pay 80 on 3 x 50 and free shipping.
var engineProbe = struct {
	items     []discount.LineItem
	discounts []discount.Discount
	cx        discount.Context
	want      decimal.Decimal
}{
	items: []discount.LineItem{
		{ID: "1", ProductID: "a", CategoryID: "x", Price: decimal.NewFromInt(100), Quantity: 2},
		{ID: "2", ProductID: "b", CategoryID: "y", Price: decimal.NewFromInt(50), Quantity: 3},
	},
	discounts: []discount.Discount{
		{
			ID:        "probe-pct",
			Shape:     discount.Percentage{Percent: decimal.NewFromInt(10)},
			Scope:     discount.Scope{Kind: discount.ScopeProduct, ProductIDs: []string{"a"}},
			Stackable: true,
		},
		{
			ID:        "probe-bxpy",
			Shape:     discount.BuyXPayY{BuyQuantity: 2, PayAmount: decimal.NewFromInt(80)},
			Scope:     discount.Scope{Kind: discount.ScopeProduct, ProductIDs: []string{"b"}},
			Stackable: true,
		},
		{
			ID:        "probe-ship",
			Shape:     discount.FreeShipping{},
			Scope:     discount.Scope{Kind: discount.ScopeAll},
			Stackable: true,
		},
	},
	cx:   discount.Context{ShippingAmount: decimal.NewFromInt(5)},
	want: decimal.NewFromInt(40),
}

// EngineCheck prices a fixed cart twice with e and fails when the totals
// differ from each other or from the known answer.
func EngineCheck(e *discount.Engine) CheckFunc {
	return func(_ context.Context) error {
		first := e.Calculate(engineProbe.items, engineProbe.discounts, engineProbe.cx)
		second := e.Calculate(engineProbe.items, engineProbe.discounts, engineProbe.cx)

		if !first.TotalDiscount.Equal(second.TotalDiscount) || len(first.Applied) != len(second.Applied) {
			return errors.Errorf("engine is not deterministic: %s vs %s", first.TotalDiscount, second.TotalDiscount)
		}
		for i := range first.Applied {
			if first.Applied[i].DiscountID != second.Applied[i].DiscountID ||
				!first.Applied[i].Amount.Equal(second.Applied[i].Amount) {
				return errors.Errorf("engine is not deterministic at record %d", i)
			}
		}
		if !first.TotalDiscount.Equal(engineProbe.want) {
			return errors.Errorf("engine probe discount %s, want %s", first.TotalDiscount, engineProbe.want)
		}
		if !first.FreeShipping {
			return errors.New("engine probe lost free shipping")
		}
		return nil
	}
}
