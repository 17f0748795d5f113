package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

func newTestStore(t *testing.T) (*CartStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartStore(client, time.Hour), mr
}

func sampleCart() *cart.Cart {
	return &cart.Cart{
		ID:             "c1",
		StoreID:        "s1",
		Email:          "a@b.c",
		Member:         true,
		ShippingAmount: decimal.RequireFromString("4.99"),
		Items: []discount.LineItem{
			{ID: "1", ProductID: "tee", VariantID: "xl", CategoryID: "apparel", Price: decimal.RequireFromString("19.99"), Quantity: 2},
			{ID: "gift:g1:mug", ProductID: "mug", Price: decimal.Zero, Quantity: 1, Gift: true, GiftDiscountID: "g1"},
		},
		Coupons:   []string{"SAVE10"},
		UpdatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartStore_SaveAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	c := sampleCart()
	require.NoError(t, store.Save(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.StoreID)
	assert.True(t, got.Member)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []string{"SAVE10"}, got.Coupons)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "xl", got.Items[0].VariantID)
	assert.True(t, decimal.RequireFromString("19.99").Equal(got.Items[0].Price))
	assert.True(t, got.Items[1].Gift)
	assert.Equal(t, "g1", got.Items[1].GiftDiscountID)
	assert.True(t, decimal.RequireFromString("4.99").Equal(got.ShippingAmount))
	assert.True(t, c.UpdatedAt.Equal(got.UpdatedAt))

	assert.Equal(t, time.Hour, mr.TTL("cart:c1"))
}

func TestCartStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestCartStore_VersionConflict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart()))

	first, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "c1")
	require.NoError(t, err)

	first.Coupons = nil
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Email = "other@b.c"
	err = store.Save(ctx, second)
	require.ErrorIs(t, err, cart.ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version)

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.Email)
	assert.Empty(t, got.Coupons)
}

func TestCartStore_NewCartCollision(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart()))

	err := store.Save(ctx, sampleCart())
	require.ErrorIs(t, err, cart.ErrVersionConflict)
}

func TestCartStore_ExpiredWhileEditing(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	c := sampleCart()
	require.NoError(t, store.Save(ctx, c))
	mr.FastForward(2 * time.Hour)

	err := store.Save(ctx, c)
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestCartStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart()))
	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.Get(ctx, "c1")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}
