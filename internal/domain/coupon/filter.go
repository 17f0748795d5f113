package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const minFilterCapacity = 1024

var _ Repository = (*FilteredRepository)(nil)

// FilteredRepository short-circuits lookups of unknown codes with a bloom
// filter of every active store:code key as of the last Refresh. Hits fall
// through to the wrapped Repository. A miss is answered with
// ErrInvalidCoupon without a lookup, so a code written after the last
// Refresh is rejected until the next one: writers outside the process are
// seen within the refresh interval, writers inside it call Refresh after
// writing. Until the first Refresh every lookup falls through.
type FilteredRepository struct {
	Repository

	fpr    float64
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewFilteredRepository wraps next with a code filter using the given
// false-positive rate.
func NewFilteredRepository(next Repository, fpr float64) *FilteredRepository {
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.001
	}
	return &FilteredRepository{Repository: next, fpr: fpr}
}

// FindByCode consults the filter before the wrapped repository. A miss is
// only definitive for codes that existed at the last Refresh.
func (r *FilteredRepository) FindByCode(ctx context.Context, storeID, code string) (*Rule, error) {
	r.mu.RLock()
	f := r.filter
	r.mu.RUnlock()

	if f != nil && !f.TestString(filterKey(storeID, code)) {
		return nil, ErrInvalidCoupon
	}
	return r.Repository.FindByCode(ctx, storeID, code)
}

// Refresh rebuilds the filter from the wrapped repository's code list.
func (r *FilteredRepository) Refresh(ctx context.Context) error {
	keys, err := r.Repository.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	f := bloom.NewWithEstimates(uint(max(len(keys), minFilterCapacity)), r.fpr)
	for _, k := range keys {
		f.AddString(filterKey(k.StoreID, k.Code))
	}

	r.mu.Lock()
	r.filter = f
	r.mu.Unlock()

	zctx.From(ctx).Debug("Coupon filter refreshed", zap.Int("codes", len(keys)))
	return nil
}

// Run refreshes the filter every interval until ctx is cancelled. Refresh
// failures keep the previous filter.
func (r *FilteredRepository) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				zctx.From(ctx).Warn("Coupon filter refresh failed", zap.Error(err))
			}
		}
	}
}

func filterKey(storeID, code string) string {
	return storeID + ":" + NormalizeCode(code)
}
