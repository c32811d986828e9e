// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/mapping"
)

// LayoutFeatures places the features of slice s of grid g into consecutive
// word slots according to policy. The returned descriptors are indexed by
// feature index minus s.Left. The second return value is the number of words
// the features occupy: one word per sample for every group of
// policy.FeaturesPerWord() features.
//
// Offsets start at baseOffset. The layout only depends on its arguments, so
// every device computing the layout of the same slice agrees on it.
func LayoutFeatures(
	policy grouping.Policy,
	g *grid.CPUGrid,
	s mapping.Slice,
	deviceID int,
	baseOffset uint64,
	sampleCount uint64,
) ([]Feature, uint64, error) {
	if !policy.Valid() {
		return nil, 0, configErrorf("%s is not a layout policy", policy)
	}
	if s.Right > uint64(g.FeatureCount()) {
		return nil, 0, errors.AssertionFailedf("slice %s exceeds %d features", s, g.FeatureCount())
	}
	for i := s.Left; i < s.Right; i++ {
		if !policy.CanProceed(g.BinCounts[i]) {
			return nil, 0, configErrorf("feature %d has %d bins; %s policy supports 1 to %d",
				g.FeatureIDs[i], g.BinCounts[i], policy, policy.MaxBins())
		}
	}

	perWord := uint64(policy.FeaturesPerWord())
	features := make([]Feature, s.Size())
	firstFold := g.BinFeatureCount(mapping.Slice{Left: 0, Right: s.Left})
	for i := s.Left; i < s.Right; i++ {
		local := i - s.Left
		group, slot := local/perWord, local%perWord
		features[local] = Feature{
			Offset:         baseOffset + group*sampleCount,
			Shift:          policy.Shift(uint32(slot)),
			Mask:           policy.Mask(),
			BitWidth:       policy.BitsPerFeature(),
			BinCount:       g.BinCounts[i],
			FirstFoldIndex: uint32(firstFold),
			Folds:          g.Folds[i],
			Index:          uint32(i),
			FeatureID:      g.FeatureIDs[i],
			OneHot:         g.IsOneHot[i],
			Policy:         policy,
			DeviceID:       deviceID,
		}
		firstFold += uint64(g.Folds[i])
	}
	return features, policy.WordCount(s.Size()) * sampleCount, nil
}

// BuildBinaryFeatures lists the bin-features of slice s of grid g: features
// in ascending index order, and within a feature its bins in ascending order.
// Split search reports results as positions in this list, so the order must
// never change.
func BuildBinaryFeatures(g *grid.CPUGrid, s mapping.Slice) []BinFeature {
	out := make([]BinFeature, 0, g.BinFeatureCount(s))
	for i := s.Left; i < s.Right; i++ {
		for bin := uint32(0); bin < g.Folds[i]; bin++ {
			out = append(out, BinFeature{FeatureIndex: uint32(i), BinID: bin})
		}
	}
	return out
}
