// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/invariants"
	"github.com/gbdtkit/cindex/mapping"
)

// BlockState is the lifecycle state of a FeaturesBlock. A block moves through
// the states in order and never skips one.
type BlockState uint8

const (
	// BlockUnbuilt is the state of the zero FeaturesBlock.
	BlockUnbuilt BlockState = iota
	// BlockLaidOut means descriptors, bin-features and histograms are fixed
	// but not every column has been written.
	BlockLaidOut
	// BlockPopulated means every column has been written at least once.
	BlockPopulated
	// BlockReady means the writes have been flushed to the device and the
	// block can be queried.
	BlockReady
)

// String implements fmt.Stringer.
func (s BlockState) String() string {
	switch s {
	case BlockUnbuilt:
		return "unbuilt"
	case BlockLaidOut:
		return "laid-out"
	case BlockPopulated:
		return "populated"
	case BlockReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SafeValue implements redact.SafeValue.
func (BlockState) SafeValue() {}

// FeaturesBlock is a set of features laid out with one grouping policy,
// together with everything split search needs to scan them: the descriptors
// (on the host and mirrored on the device), the slice of the compressed index
// the block owns on each device, the bin-feature list and the folds
// histogram.
//
// The structure of a block is frozen once it is created; only the contents of
// its compressed-index words change, through WriteColumn.
type FeaturesBlock struct {
	policy  grouping.Policy
	grid    *grid.CPUGrid
	samples mapping.SingleMapping
	device  *device.Device

	// featuresHost holds, for every feature of the block, its descriptor on
	// each device.
	featuresHost   []mapping.DistributedObject[Feature]
	featuresDevice *device.Buffer[Feature]

	cindexSizes    mapping.DistributedObject[uint64]
	cindexOffsets  mapping.DistributedObject[uint64]
	foldsHistogram mapping.DistributedObject[grid.FoldsHistogram]

	binFeatures              []BinFeature
	binFeatureCount          mapping.DistributedObject[uint64]
	histogramsMapping        mapping.SingleMapping
	binFeaturesForBestSplits *device.Buffer[BinFeature]

	state        BlockState
	written      []bool
	writtenCount int
}

func newFeaturesBlock(
	policy grouping.Policy, g *grid.CPUGrid, samples mapping.SingleMapping, deviceCount int,
) *FeaturesBlock {
	b := &FeaturesBlock{
		policy:          policy,
		grid:            g,
		samples:         samples,
		featuresHost:    make([]mapping.DistributedObject[Feature], g.FeatureCount()),
		cindexSizes:     mapping.MakeDistributedObject[uint64](deviceCount),
		cindexOffsets:   mapping.MakeDistributedObject[uint64](deviceCount),
		foldsHistogram:  mapping.MakeDistributedObject[grid.FoldsHistogram](deviceCount),
		binFeatureCount: mapping.MakeDistributedObject[uint64](deviceCount),
		written:         make([]bool, g.FeatureCount()),
	}
	for i := range b.featuresHost {
		b.featuresHost[i] = mapping.MakeDistributedObject[Feature](deviceCount)
	}
	return b
}

// Policy returns the grouping policy of the block.
func (b *FeaturesBlock) Policy() grouping.Policy { return b.policy }

// Grid returns the block's grid. The grid is shared and must not be
// modified.
func (b *FeaturesBlock) Grid() *grid.CPUGrid { return b.grid }

// Samples returns the mapping of the samples covered by the block.
func (b *FeaturesBlock) Samples() mapping.SingleMapping { return b.samples }

// State returns the block's lifecycle state.
func (b *FeaturesBlock) State() BlockState { return b.state }

// FeatureCount returns the number of features in the block.
func (b *FeaturesBlock) FeatureCount() int { return len(b.featuresHost) }

// Feature returns the per-device descriptors of the i-th feature.
func (b *FeaturesBlock) Feature(i int) mapping.DistributedObject[Feature] {
	invariants.CheckBounds(i, len(b.featuresHost))
	return b.featuresHost[i]
}

// Features returns the descriptors of every feature on dev, in block order.
func (b *FeaturesBlock) Features(dev int) []Feature {
	out := make([]Feature, len(b.featuresHost))
	for i, f := range b.featuresHost {
		out[i] = f.At(dev)
	}
	return out
}

// FeaturesDevice returns the device-resident copy of the descriptors.
func (b *FeaturesBlock) FeaturesDevice() *device.Buffer[Feature] { return b.featuresDevice }

// CIndexSize returns the number of compressed-index words the block owns on
// dev.
func (b *FeaturesBlock) CIndexSize(dev int) uint64 { return b.cindexSizes.At(dev) }

// CIndexOffset returns the offset of the block's first compressed-index word
// on dev.
func (b *FeaturesBlock) CIndexOffset(dev int) uint64 { return b.cindexOffsets.At(dev) }

// FoldsHistogram returns the folds histogram of the features held on dev.
func (b *FeaturesBlock) FoldsHistogram(dev int) grid.FoldsHistogram {
	return b.foldsHistogram.At(dev)
}

// BinFeatures returns the ordered bin-feature list. The slice is shared and
// must not be modified.
func (b *FeaturesBlock) BinFeatures() []BinFeature { return b.binFeatures }

// BinFeatureCount returns the number of bin-features scanned on dev.
func (b *FeaturesBlock) BinFeatureCount(dev int) uint64 { return b.binFeatureCount.At(dev) }

// HistogramsMapping returns the placement of the block's bin-features.
func (b *FeaturesBlock) HistogramsMapping() mapping.SingleMapping { return b.histogramsMapping }

// BinFeaturesForBestSplits returns the device-resident bin-feature list used
// by best-split search. It holds the bin-features in the same order as
// BinFeatures.
func (b *FeaturesBlock) BinFeaturesForBestSplits() *device.Buffer[BinFeature] {
	return b.binFeaturesForBestSplits
}

// WriteColumn writes the bins of the i-th feature into cindex. See
// WriteToCompressedIndex.
func (b *FeaturesBlock) WriteColumn(i int, bins []uint8, cindex *CompressedIndex) error {
	if b.state == BlockUnbuilt {
		return stateErrorf("cannot write columns of a block that is not laid out")
	}
	if i < 0 || i >= len(b.featuresHost) {
		return stateErrorf("feature %d is not part of the block (%d features)", i, len(b.featuresHost))
	}
	if cindex == nil {
		return stateErrorf("no compressed index allocated for the block")
	}
	dev := b.samples.DeviceID()
	if end := b.cindexOffsets.At(dev) + b.cindexSizes.At(dev); cindex.Size(dev) < end {
		return stateErrorf("compressed index holds %d words on device %d; block needs %d",
			cindex.Size(dev), dev, end)
	}
	if err := WriteToCompressedIndex(b.featuresHost[i], bins, b.samples, cindex); err != nil {
		return err
	}
	if !b.written[i] {
		b.written[i] = true
		b.writtenCount++
	}
	b.maybePopulated()
	return nil
}

func (b *FeaturesBlock) maybePopulated() {
	if b.state == BlockLaidOut && b.writtenCount == len(b.written) {
		b.state = BlockPopulated
	}
}

// MissingColumns returns the indexes of the features whose column has not
// been written yet.
func (b *FeaturesBlock) MissingColumns() []int {
	var missing []int
	for i, w := range b.written {
		if !w {
			missing = append(missing, i)
		}
	}
	return missing
}

// Finalize waits for the block's column writes to reach the device and moves
// the block to BlockReady. The block must be populated. Finalizing a ready
// block is a no-op.
func (b *FeaturesBlock) Finalize() error {
	switch b.state {
	case BlockReady:
		return nil
	case BlockPopulated:
	default:
		return stateErrorf("cannot finalize a %s block (%d of %d columns written)",
			b.state, b.writtenCount, len(b.written))
	}
	if err := b.device.Synchronize(); err != nil {
		return err
	}
	b.state = BlockReady
	return nil
}

// Fingerprint hashes the block's structure: its policy, placement,
// descriptors and bin-features. Two blocks built from the same inputs have the
// same fingerprint.
func (b *FeaturesBlock) Fingerprint() uint64 {
	h := xxhash.New()
	var buf []byte
	buf = append(buf, byte(b.policy))
	buf = binary.LittleEndian.AppendUint64(buf, b.samples.Size())
	for dev := 0; dev < b.cindexSizes.DeviceCount(); dev++ {
		buf = binary.LittleEndian.AppendUint64(buf, b.cindexOffsets.At(dev))
		buf = binary.LittleEndian.AppendUint64(buf, b.cindexSizes.At(dev))
	}
	for _, f := range b.featuresHost {
		for dev := 0; dev < f.DeviceCount(); dev++ {
			buf = f.At(dev).appendBinary(buf)
		}
	}
	_, _ = h.Write(buf)
	buf = buf[:0]
	for _, bf := range b.binFeatures {
		buf = binary.LittleEndian.AppendUint32(buf, bf.FeatureIndex)
		buf = binary.LittleEndian.AppendUint32(buf, bf.BinID)
	}
	_, _ = h.Write(buf)
	return h.Sum64()
}

// Free releases the block's device memory.
func (b *FeaturesBlock) Free() {
	if b.featuresDevice != nil {
		b.featuresDevice.Free()
		b.featuresDevice = nil
	}
	if b.binFeaturesForBestSplits != nil {
		b.binFeaturesForBestSplits.Free()
		b.binFeaturesForBestSplits = nil
	}
}

func (b *FeaturesBlock) checkBinFeatureCount(dev int) {
	if n := b.binFeatureCount.At(dev); n != uint64(len(b.binFeatures)) {
		panic(errors.AssertionFailedf("device %d records %d bin-features; list holds %d",
			dev, n, len(b.binFeatures)))
	}
}
