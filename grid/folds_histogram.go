// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package grid

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// FoldsHistogramBuckets is the number of buckets of a FoldsHistogram.
const FoldsHistogramBuckets = 32

// FoldsHistogram groups features by their fold count so that split search can
// schedule features of similar cost together. Bucket k holds the features
// whose fold count f satisfies 2^(k-1) < f <= 2^k; features without folds are
// not recorded.
//
// The histogram only affects scheduling: an unbalanced histogram slows split
// search down but does not change its result.
type FoldsHistogram struct {
	// Features is the number of features per bucket.
	Features [FoldsHistogramBuckets]uint32
	// BinFeatures is the number of bin-features per bucket.
	BinFeatures [FoldsHistogramBuckets]uint32
}

// FoldsBucket returns the bucket of a feature with folds > 0 folds.
func FoldsBucket(folds uint32) int {
	if folds == 0 {
		panic(errors.AssertionFailedf("features without folds have no bucket"))
	}
	return bits.Len32(folds - 1)
}

// Record adds a feature with the given fold count.
func (h *FoldsHistogram) Record(folds uint32) {
	if folds == 0 {
		return
	}
	b := FoldsBucket(folds)
	h.Features[b]++
	h.BinFeatures[b] += folds
}

// Add merges o into h.
func (h *FoldsHistogram) Add(o FoldsHistogram) {
	for i := range h.Features {
		h.Features[i] += o.Features[i]
		h.BinFeatures[i] += o.BinFeatures[i]
	}
}

// FeatureCountForBits returns the number of features in buckets
// [fromBits, toBits].
func (h FoldsHistogram) FeatureCountForBits(fromBits, toBits int) uint32 {
	var n uint32
	for i := max(fromBits, 0); i <= toBits && i < FoldsHistogramBuckets; i++ {
		n += h.Features[i]
	}
	return n
}

// BinFeatureCountForBits returns the number of bin-features in buckets
// [fromBits, toBits].
func (h FoldsHistogram) BinFeatureCountForBits(fromBits, toBits int) uint32 {
	var n uint32
	for i := max(fromBits, 0); i <= toBits && i < FoldsHistogramBuckets; i++ {
		n += h.BinFeatures[i]
	}
	return n
}

// TotalFeatures returns the number of recorded features.
func (h FoldsHistogram) TotalFeatures() uint64 {
	var n uint64
	for _, c := range h.Features {
		n += uint64(c)
	}
	return n
}

// TotalBinFeatures returns the number of recorded bin-features.
func (h FoldsHistogram) TotalBinFeatures() uint64 {
	var n uint64
	for _, c := range h.BinFeatures {
		n += uint64(c)
	}
	return n
}

// String implements fmt.Stringer.
func (h FoldsHistogram) String() string {
	return redact.StringWithoutMarkers(h)
}

// SafeFormat implements redact.SafeFormatter. Each non-empty bucket prints as
// bucket:features/bin-features.
func (h FoldsHistogram) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString("[")
	sep := false
	for i := range h.Features {
		if h.Features[i] == 0 {
			continue
		}
		if sep {
			w.SafeString(" ")
		}
		sep = true
		w.Printf("%d:%d/%d", i, h.Features[i], h.BinFeatures[i])
	}
	w.SafeString("]")
}
