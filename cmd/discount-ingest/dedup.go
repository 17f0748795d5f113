package main

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
)

// codeSet tracks store:code keys already accepted. The bloom filter answers
// most lookups; only its positives are confirmed against the exact set.
type codeSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newCodeSet(capacity uint, fpr float64) *codeSet {
	return &codeSet{
		filter: bloom.NewWithEstimates(max(capacity, 1024), fpr),
		exact:  make(map[string]struct{}, capacity),
	}
}

// add reports whether key was not seen before, recording it.
func (s *codeSet) add(key string) bool {
	if s.filter.TestString(key) {
		if _, ok := s.exact[key]; ok {
			return false
		}
	}
	s.filter.AddString(key)
	s.exact[key] = struct{}{}
	return true
}

// dedupe merges per-file rules in file order. The first definition of a
// store:code pair wins.
func dedupe(files [][]*coupon.Rule, fpr float64) (unique []*coupon.Rule, dups int) {
	var total int
	for _, rules := range files {
		total += len(rules)
	}

	set := newCodeSet(uint(total), fpr)
	unique = make([]*coupon.Rule, 0, total)
	for _, rules := range files {
		for _, r := range rules {
			if !set.add(r.StoreID + ":" + r.Code()) {
				dups++
				continue
			}
			unique = append(unique, r)
		}
	}
	return unique, dups
}
