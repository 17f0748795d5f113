package coupon

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilteredRepository_PassThroughBeforeRefresh(t *testing.T) {
	repo := &mockCouponRepo{rule: percentRule("SAVE10", "10")}
	f := NewFilteredRepository(repo, 0.001)

	got, err := f.FindByCode(context.Background(), "store-1", "SAVE10")

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", got.Code())
	assert.Equal(t, 1, repo.findCalls)
}

func TestFilteredRepository_RejectsUnknownCodes(t *testing.T) {
	repo := &mockCouponRepo{
		rule: percentRule("SAVE10", "10"),
		keys: []Key{{StoreID: "store-1", Code: "SAVE10"}},
	}
	f := NewFilteredRepository(repo, 0.001)
	require.NoError(t, f.Refresh(context.Background()))

	_, err := f.FindByCode(context.Background(), "store-1", "NOPE-NOPE")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, 0, repo.findCalls)

	_, err = f.FindByCode(context.Background(), "store-2", "SAVE10")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, 0, repo.findCalls)

	got, err := f.FindByCode(context.Background(), "store-1", " save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", got.Code())
	assert.Equal(t, 1, repo.findCalls)
}

func TestFilteredRepository_NewCodeVisibleAfterRefresh(t *testing.T) {
	ctx := context.Background()
	repo := &mockCouponRepo{
		rule: percentRule("SAVE10", "10"),
		keys: []Key{{StoreID: "store-1", Code: "OTHER"}},
	}
	f := NewFilteredRepository(repo, 0.001)
	require.NoError(t, f.Refresh(ctx))

	// Written after the filter was built.
	repo.keys = append(repo.keys, Key{StoreID: "store-1", Code: "SAVE10"})

	_, err := f.FindByCode(ctx, "store-1", "SAVE10")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, 0, repo.findCalls)

	require.NoError(t, f.Refresh(ctx))

	got, err := f.FindByCode(ctx, "store-1", "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", got.Code())
	assert.Equal(t, 1, repo.findCalls)
}

func TestFilteredRepository_RefreshError(t *testing.T) {
	repo := &mockCouponRepo{err: errors.New("db down")}
	f := NewFilteredRepository(repo, 0)

	err := f.Refresh(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list coupon codes")
}
