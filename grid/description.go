// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package grid holds the binarization metadata of a feature set: for each
// feature its bin count, its borders and whether it is one-hot encoded.
//
// The procedure choosing borders lives outside this module. A grid is only
// consumed: BinarizationInfo is the read-only view the layout code relies on,
// Description an in-memory implementation of it, and CPUGrid the per-block
// snapshot shared by everything derived from one block.
package grid

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
)

// MaxBins is the largest bin count of a feature. Bins are stored in one byte
// per sample before they are written into a compressed index.
const MaxBins = 256

// BinarizationInfo exposes the binarization of each feature.
type BinarizationInfo interface {
	// Contains returns true if the feature is known.
	Contains(featureID uint32) bool
	// BinCount returns the number of bins of the feature.
	BinCount(featureID uint32) uint32
	// Borders returns the ascending borders of a numeric feature. It returns
	// nil for one-hot features.
	Borders(featureID uint32) []float32
	// IsOneHot returns true if the feature is a one-hot encoded categorical
	// feature.
	IsOneHot(featureID uint32) bool
}

type featureMeta struct {
	borders    []float32
	categories uint32
	oneHot     bool
}

// Description is an in-memory BinarizationInfo.
type Description struct {
	features swiss.Map[uint32, featureMeta]
}

var _ BinarizationInfo = (*Description)(nil)

// NewDescription returns an empty Description.
func NewDescription() *Description {
	d := &Description{}
	d.features.Init(16)
	return d
}

// AddFloatFeature registers a numeric feature binarized by the given borders.
// A feature with n borders has n+1 bins.
func (d *Description) AddFloatFeature(featureID uint32, borders []float32) error {
	if _, ok := d.features.Get(featureID); ok {
		return errors.Newf("feature %d registered twice", featureID)
	}
	if len(borders) >= MaxBins {
		return errors.Newf("feature %d has %d borders; at most %d are supported",
			featureID, len(borders), MaxBins-1)
	}
	for i := 1; i < len(borders); i++ {
		if !(borders[i-1] < borders[i]) {
			return errors.Newf("feature %d: borders must be strictly increasing (%g >= %g)",
				featureID, borders[i-1], borders[i])
		}
	}
	d.features.Put(featureID, featureMeta{borders: slices.Clone(borders)})
	return nil
}

// AddOneHotFeature registers a categorical feature with the given number of
// categories, each category being its own bin.
func (d *Description) AddOneHotFeature(featureID uint32, categories uint32) error {
	if _, ok := d.features.Get(featureID); ok {
		return errors.Newf("feature %d registered twice", featureID)
	}
	if categories == 0 || categories > MaxBins {
		return errors.Newf("feature %d has %d categories; want 1 to %d",
			featureID, categories, MaxBins)
	}
	d.features.Put(featureID, featureMeta{categories: categories, oneHot: true})
	return nil
}

// FeatureCount returns the number of registered features.
func (d *Description) FeatureCount() int {
	return d.features.Len()
}

// Contains implements BinarizationInfo.
func (d *Description) Contains(featureID uint32) bool {
	_, ok := d.features.Get(featureID)
	return ok
}

// BinCount implements BinarizationInfo.
func (d *Description) BinCount(featureID uint32) uint32 {
	m, ok := d.features.Get(featureID)
	if !ok {
		return 0
	}
	if m.oneHot {
		return m.categories
	}
	return uint32(len(m.borders)) + 1
}

// Borders implements BinarizationInfo.
func (d *Description) Borders(featureID uint32) []float32 {
	m, _ := d.features.Get(featureID)
	return m.borders
}

// IsOneHot implements BinarizationInfo.
func (d *Description) IsOneHot(featureID uint32) bool {
	m, _ := d.features.Get(featureID)
	return m.oneHot
}
