// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package grid

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/gbdtkit/cindex/mapping"
)

// FoldCount returns the number of bin-features (split candidates) derived
// from a feature.
//
// A numeric feature with B bins has B-1 borders and yields one "value >
// border" candidate per border. A one-hot feature yields one "value ==
// category" candidate per category, except that a two-category feature needs
// a single candidate since both categories describe the same split.
func FoldCount(binCount uint32, oneHot bool) uint32 {
	switch {
	case binCount <= 1:
		return 0
	case oneHot && binCount > 2:
		return binCount
	default:
		return binCount - 1
	}
}

// CPUGrid is the host-side grid of an ordered subset of features. Index i of
// every slice describes FeatureIDs[i]. A CPUGrid is immutable once built and
// is shared by pointer.
type CPUGrid struct {
	FeatureIDs []uint32
	BinCounts  []uint32
	Folds      []uint32
	IsOneHot   []bool
	Borders    [][]float32

	inverse swiss.Map[uint32, int]
}

// NewCPUGrid builds the grid of featureIDs, in the given order.
func NewCPUGrid(info BinarizationInfo, featureIDs []uint32) (*CPUGrid, error) {
	n := len(featureIDs)
	g := &CPUGrid{
		FeatureIDs: make([]uint32, n),
		BinCounts:  make([]uint32, n),
		Folds:      make([]uint32, n),
		IsOneHot:   make([]bool, n),
		Borders:    make([][]float32, n),
	}
	g.inverse.Init(n)
	for i, id := range featureIDs {
		if !info.Contains(id) {
			return nil, errors.Newf("feature %d has no binarization", id)
		}
		if prev, ok := g.inverse.Get(id); ok {
			return nil, errors.Newf("feature %d listed twice (indexes %d and %d)", id, prev, i)
		}
		g.inverse.Put(id, i)
		g.FeatureIDs[i] = id
		g.BinCounts[i] = info.BinCount(id)
		g.IsOneHot[i] = info.IsOneHot(id)
		g.Borders[i] = info.Borders(id)
		g.Folds[i] = FoldCount(g.BinCounts[i], g.IsOneHot[i])
	}
	return g, nil
}

// FeatureCount returns the number of features in the grid.
func (g *CPUGrid) FeatureCount() int {
	return len(g.FeatureIDs)
}

// FeatureIndex returns the index of the feature within the grid.
func (g *CPUGrid) FeatureIndex(featureID uint32) (int, bool) {
	return g.inverse.Get(featureID)
}

// BinFeatureCount returns the number of bin-features of the features in s.
func (g *CPUGrid) BinFeatureCount(s mapping.Slice) uint64 {
	var n uint64
	for i := s.Left; i < s.Right; i++ {
		n += uint64(g.Folds[i])
	}
	return n
}

// FoldsHistogram computes the folds histogram of the features in s.
func (g *CPUGrid) FoldsHistogram(s mapping.Slice) FoldsHistogram {
	var h FoldsHistogram
	for i := s.Left; i < s.Right; i++ {
		h.Record(g.Folds[i])
	}
	return h
}
