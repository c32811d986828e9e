// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/mapping"
)

// PolicyGroup is a set of features laid out with one grouping policy.
type PolicyGroup struct {
	Policy     grouping.Policy
	FeatureIDs []uint32
}

// PartitionFeatures splits featureIDs into one group per grouping policy.
// With grouping.Auto every feature goes to the densest policy able to
// represent its bins; groups are returned from densest to sparsest and keep
// the relative order of featureIDs. With any other policy a single group is
// returned. Empty groups are omitted.
func PartitionFeatures(
	info grid.BinarizationInfo, featureIDs []uint32, policy grouping.Policy,
) ([]PolicyGroup, error) {
	if policy != grouping.Auto {
		if !policy.Valid() {
			return nil, configErrorf("%s is not a layout policy", policy)
		}
		if len(featureIDs) == 0 {
			return nil, nil
		}
		return []PolicyGroup{{Policy: policy, FeatureIDs: append([]uint32(nil), featureIDs...)}}, nil
	}
	byPolicy := make(map[grouping.Policy][]uint32)
	for _, id := range featureIDs {
		if !info.Contains(id) {
			return nil, configErrorf("feature %d has no binarization", id)
		}
		p, ok := grouping.Choose(info.BinCount(id))
		if !ok {
			return nil, configErrorf("feature %d has %d bins; no grouping policy can represent it",
				id, info.BinCount(id))
		}
		byPolicy[p] = append(byPolicy[p], id)
	}
	var groups []PolicyGroup
	for _, p := range grouping.Policies {
		if ids := byPolicy[p]; len(ids) > 0 {
			groups = append(groups, PolicyGroup{Policy: p, FeatureIDs: ids})
		}
	}
	return groups, nil
}

// IndexBuilder lays several features blocks out back to back in one
// compressed index and then allocates the index.
type IndexBuilder struct {
	opts    *Options
	mgr     *device.Manager
	layout  *SingleDevLayout
	info    grid.BinarizationInfo
	samples mapping.SingleMapping

	offsets  mapping.DistributedObject[uint64]
	blocks   []*FeaturesBlock
	finished bool
}

// NewIndexBuilder returns a builder laying out features of info for the
// samples of the samples mapping on the active device of mgr.
func NewIndexBuilder(
	mgr *device.Manager, info grid.BinarizationInfo, samples mapping.SingleMapping, opts *Options,
) *IndexBuilder {
	opts = opts.Clone()
	opts.EnsureDefaults()
	return &IndexBuilder{
		opts:    opts,
		mgr:     mgr,
		layout:  NewSingleDevLayout(mgr, opts.Logger),
		info:    info,
		samples: samples,
		offsets: mapping.MakeDistributedObject[uint64](mgr.DeviceCount()),
	}
}

// AddBlock lays featureIDs out with the given policy after the blocks added
// so far.
func (b *IndexBuilder) AddBlock(policy grouping.Policy, featureIDs []uint32) (*FeaturesBlock, error) {
	if b.finished {
		return nil, stateErrorf("cannot add blocks to a finished index")
	}
	block, err := b.layout.CreateFeaturesBlock(policy, featureIDs, b.info, b.samples, b.offsets)
	if err != nil {
		return nil, err
	}
	for dev := 0; dev < b.offsets.DeviceCount(); dev++ {
		b.offsets.Set(dev, b.offsets.At(dev)+block.CIndexSize(dev))
	}
	b.blocks = append(b.blocks, block)
	return block, nil
}

// AddFeatures partitions featureIDs according to Options.Policy (see
// PartitionFeatures) and adds one block per group.
func (b *IndexBuilder) AddFeatures(featureIDs []uint32) ([]*FeaturesBlock, error) {
	groups, err := PartitionFeatures(b.info, featureIDs, b.opts.Policy)
	if err != nil {
		return nil, err
	}
	blocks := make([]*FeaturesBlock, 0, len(groups))
	for _, g := range groups {
		block, err := b.AddBlock(g.Policy, g.FeatureIDs)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Finish allocates the compressed index covering every block added so far.
// The builder cannot be used afterwards.
func (b *IndexBuilder) Finish() (*Index, error) {
	if b.finished {
		return nil, stateErrorf("index already finished")
	}
	b.finished = true
	cindex, err := NewCompressedIndex(b.mgr, b.offsets)
	if err != nil {
		for _, block := range b.blocks {
			block.Free()
		}
		return nil, err
	}
	ix := &Index{
		blocks: b.blocks,
		cindex: cindex,
	}
	ix.byFeature.Init(len(b.blocks))
	for bi, block := range b.blocks {
		for i, id := range block.Grid().FeatureIDs {
			if prev, ok := ix.byFeature.Get(id); ok {
				ix.Close()
				return nil, configErrorf("feature %d laid out in blocks %d and %d", id, prev.block, bi)
			}
			ix.byFeature.Put(id, featureRef{block: bi, index: i})
		}
	}
	for dev := 0; dev < b.offsets.DeviceCount(); dev++ {
		if n := b.offsets.At(dev); n > 0 {
			b.opts.Logger.Infof("allocated compressed index on device %d: %d blocks, %s",
				dev, len(b.blocks), crhumanize.Bytes(n*4, crhumanize.Compact, crhumanize.OmitI))
		}
	}
	return ix, nil
}

type featureRef struct {
	block int
	index int
}

// Index is a compressed index together with the features blocks laid out in
// it.
type Index struct {
	blocks    []*FeaturesBlock
	cindex    *CompressedIndex
	byFeature swiss.Map[uint32, featureRef]
}

// Blocks returns the features blocks in layout order.
func (ix *Index) Blocks() []*FeaturesBlock {
	return ix.blocks
}

// CompressedIndex returns the compressed index shared by the blocks.
func (ix *Index) CompressedIndex() *CompressedIndex {
	return ix.cindex
}

// Lookup returns the block holding featureID and the feature's index within
// it.
func (ix *Index) Lookup(featureID uint32) (*FeaturesBlock, int, bool) {
	ref, ok := ix.byFeature.Get(featureID)
	if !ok {
		return nil, 0, false
	}
	return ix.blocks[ref.block], ref.index, true
}

// WriteColumn writes the bins of featureID. See FeaturesBlock.WriteColumn.
func (ix *Index) WriteColumn(featureID uint32, bins []uint8) error {
	block, i, ok := ix.Lookup(featureID)
	if !ok {
		return stateErrorf("feature %d is not part of the index", featureID)
	}
	return block.WriteColumn(i, bins, ix.cindex)
}

// DecodeColumn returns the bins of featureID as stored in the index.
func (ix *Index) DecodeColumn(featureID uint32) ([]uint8, error) {
	block, i, ok := ix.Lookup(featureID)
	if !ok {
		return nil, stateErrorf("feature %d is not part of the index", featureID)
	}
	dev := block.Samples().DeviceID()
	return ix.cindex.DecodeColumn(block.Feature(i).At(dev), block.Samples().Size())
}

// Finalize finalizes every block. See FeaturesBlock.Finalize.
func (ix *Index) Finalize() error {
	for bi, block := range ix.blocks {
		if err := block.Finalize(); err != nil {
			return errors.Wrapf(err, "block %d", bi)
		}
	}
	return nil
}

// Close releases the device memory of the index and its blocks.
func (ix *Index) Close() {
	for _, block := range ix.blocks {
		block.Free()
	}
	ix.cindex.Free()
}
