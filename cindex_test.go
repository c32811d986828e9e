// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"strings"
	"testing"
	"time"
	"unsafe"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/testutils"
	"github.com/gbdtkit/cindex/mapping"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// twoFeatures returns feature 1 with 4 bins and feature 2 with 3 bins.
func twoFeatures(t *testing.T) *grid.Description {
	d := grid.NewDescription()
	require.NoError(t, d.AddFloatFeature(1, []float32{0, 1, 2}))
	require.NoError(t, d.AddFloatFeature(2, []float32{0, 1}))
	return d
}

func newTestManager(t *testing.T, opts device.Options) *device.Manager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutils.NewLogger(t)
	}
	mgr, err := device.NewManager(opts)
	require.NoError(t, err)
	return mgr
}

// fakeInfo is a BinarizationInfo exposing bin counts Description refuses.
type fakeInfo map[uint32]uint32

func (f fakeInfo) Contains(id uint32) bool     { _, ok := f[id]; return ok }
func (f fakeInfo) BinCount(id uint32) uint32   { return f[id] }
func (f fakeInfo) Borders(id uint32) []float32 { return nil }
func (f fakeInfo) IsOneHot(id uint32) bool     { return false }

func TestPackUnpack(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	for _, policy := range grouping.Policies {
		for i := 0; i < 1000; i++ {
			slot := uint32(rng.Intn(int(policy.FeaturesPerWord())))
			f := Feature{Shift: policy.Shift(slot), Mask: policy.Mask()}
			word := rng.Uint32()
			bin := uint8(rng.Intn(int(policy.MaxBins())))

			packed := Pack(word, f, bin)
			require.Equal(t, bin, Unpack(packed, f))
			// Bits outside the feature's slot are preserved.
			other := ^(f.Mask << f.Shift)
			require.Equal(t, word&other, packed&other)
			// Packing is idempotent.
			require.Equal(t, packed, Pack(packed, f, bin))
		}
	}
}

func TestLayoutFeatures(t *testing.T) {
	d := grid.NewDescription()
	ids := []uint32{10, 11, 12, 13, 14, 15, 16}
	for i, id := range ids {
		require.NoError(t, d.AddOneHotFeature(id, uint32(i+1)))
	}
	g, err := grid.NewCPUGrid(d, ids)
	require.NoError(t, err)
	// Folds: 0 1 3 4 5 6 7.

	s := mapping.MakeSlice(2, 7)
	features, size, err := LayoutFeatures(grouping.OneByteFeatures, g, s, 0, 100, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(20), size)
	require.Len(t, features, 5)

	var offsets, shifts, firstFolds, indexes []uint64
	for _, f := range features {
		offsets = append(offsets, f.Offset)
		shifts = append(shifts, uint64(f.Shift))
		firstFolds = append(firstFolds, uint64(f.FirstFoldIndex))
		indexes = append(indexes, uint64(f.Index))
		require.True(t, f.OneHot)
		require.Equal(t, uint32(8), f.BitWidth)
		require.Equal(t, grouping.OneByteFeatures, f.Policy)
	}
	require.Equal(t, []uint64{100, 100, 100, 100, 110}, offsets)
	require.Equal(t, []uint64{24, 16, 8, 0, 24}, shifts)
	require.Equal(t, []uint64{1, 4, 8, 13, 19}, firstFolds)
	require.Equal(t, []uint64{2, 3, 4, 5, 6}, indexes)
	require.Equal(t, uint64(103), features[3].Word(3))

	bf := BuildBinaryFeatures(g, mapping.MakeSlice(0, 3))
	require.Equal(t, []BinFeature{{1, 0}, {2, 0}, {2, 1}, {2, 2}}, bf)

	_, _, err = LayoutFeatures(grouping.HalfByteFeatures, g, s, 0, 0, 10)
	require.NoError(t, err)
	_, _, err = LayoutFeatures(grouping.BinaryFeatures, g, s, 0, 0, 10)
	require.True(t, IsConfigurationError(err))
	_, _, err = LayoutFeatures(grouping.Auto, g, s, 0, 0, 10)
	require.True(t, IsConfigurationError(err))
	_, _, err = LayoutFeatures(grouping.OneByteFeatures, g, mapping.MakeSlice(0, 8), 0, 0, 10)
	require.Error(t, err)
	require.False(t, IsConfigurationError(err))
}

func TestLayoutDeterministic(t *testing.T) {
	defer leaktest.AfterTest(t)()

	build := func(policy grouping.Policy) *FeaturesBlock {
		mgr := newTestManager(t, device.Options{})
		defer mgr.Close()
		l := NewSingleDevLayout(mgr, nil)
		b, err := l.CreateFeaturesBlock(policy, []uint32{2, 1}, twoFeatures(t),
			mapping.MakeSingleMapping(0, 7), mapping.MakeDistributedObject[uint64](1))
		require.NoError(t, err)
		return b
	}
	a, b := build(grouping.HalfByteFeatures), build(grouping.HalfByteFeatures)
	for i := 0; i < a.FeatureCount(); i++ {
		if diff := pretty.Diff(a.Feature(i).At(0), b.Feature(i).At(0)); diff != nil {
			t.Fatalf("feature %d differs:\n%s", i, strings.Join(diff, "\n"))
		}
	}
	require.Equal(t, a.BinFeatures(), b.BinFeatures())
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), build(grouping.OneByteFeatures).Fingerprint())
}

func TestSingleDevLayoutConfigErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	info := twoFeatures(t)
	ids := []uint32{1, 2}
	offsets := mapping.MakeDistributedObject[uint64](2)

	mgr := newTestManager(t, device.Options{Count: 2})
	defer mgr.Close()
	l := NewSingleDevLayout(mgr, nil)

	// Both devices are active.
	_, err := l.CreateFeaturesBlock(grouping.OneByteFeatures, ids, info, mapping.MakeSingleMapping(0, 5), offsets)
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "exactly one active device; 2 are active")

	// Samples on an inactive device.
	require.NoError(t, mgr.SetActiveDevices(1))
	_, err = l.CreateFeaturesBlock(grouping.OneByteFeatures, ids, info, mapping.MakeSingleMapping(0, 5), offsets)
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "samples live on device 0; active device is 1")

	// A layout that does not cover the requested features.
	samples := mapping.MakeSingleMapping(1, 5)
	for _, layout := range []mapping.SingleMapping{
		mapping.MakeSingleMapping(1, 1),
		mapping.MakeSingleMapping(1, 3),
		mapping.MakeSingleMapping(0, 2),
	} {
		_, err = l.createFeaturesBlock(layout, grouping.OneByteFeatures, ids, info, samples, offsets)
		require.True(t, IsConfigurationError(err), "layout %s", layout)
		require.ErrorContains(t, err, "single device layout requires [0, 2)")
	}

	// Unknown and duplicate features.
	_, err = l.CreateFeaturesBlock(grouping.OneByteFeatures, []uint32{1, 3}, info, samples, offsets)
	require.True(t, IsConfigurationError(err))
	_, err = l.CreateFeaturesBlock(grouping.OneByteFeatures, []uint32{1, 1}, info, samples, offsets)
	require.True(t, IsConfigurationError(err))

	// Offsets not covering the device.
	_, err = l.CreateFeaturesBlock(grouping.OneByteFeatures, ids, info, samples,
		mapping.MakeDistributedObject[uint64](1))
	require.True(t, IsConfigurationError(err))

	// Bins the policy cannot represent.
	_, err = l.CreateFeaturesBlock(grouping.BinaryFeatures, ids, info, samples, offsets)
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "feature 1 has 4 bins; binary policy supports 1 to 2")
	_, err = l.CreateFeaturesBlock(grouping.OneByteFeatures, []uint32{7}, fakeInfo{7: 300}, samples, offsets)
	require.True(t, IsConfigurationError(err))

	// Nothing was allocated.
	d, err := mgr.Device(1)
	require.NoError(t, err)
	require.Equal(t, device.Usage{}, d.Usage())
}

func TestCreateFeaturesBlockOutOfMemory(t *testing.T) {
	defer leaktest.AfterTest(t)()

	// Room for the descriptors but not for the bin-features.
	limit := 2*uint64(unsafe.Sizeof(Feature{})) + 1
	mgr := newTestManager(t, device.Options{MemoryLimit: limit})
	defer mgr.Close()
	l := NewSingleDevLayout(mgr, nil)
	_, err := l.CreateFeaturesBlock(grouping.OneByteFeatures, []uint32{1, 2}, twoFeatures(t),
		mapping.MakeSingleMapping(0, 5), mapping.MakeDistributedObject[uint64](1))
	require.True(t, errors.Is(err, device.ErrOutOfMemory))
	require.False(t, IsConfigurationError(err))

	d, err := mgr.Device(0)
	require.NoError(t, err)
	require.NoError(t, d.Synchronize())
	require.Equal(t, device.Usage{}, d.Usage())
}

func TestFeaturesBlockStates(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var zero FeaturesBlock
	require.Equal(t, BlockUnbuilt, zero.State())
	require.True(t, errors.Is(zero.WriteColumn(0, nil, nil), ErrInvalidState))
	require.True(t, errors.Is(zero.Finalize(), ErrInvalidState))

	mgr := newTestManager(t, device.Options{})
	defer mgr.Close()
	l := NewSingleDevLayout(mgr, nil)
	samples := mapping.MakeSingleMapping(0, 3)

	// A block without features has no columns to wait for.
	empty, err := l.CreateFeaturesBlock(grouping.OneByteFeatures, nil, twoFeatures(t), samples,
		mapping.MakeDistributedObject[uint64](1))
	require.NoError(t, err)
	require.Equal(t, BlockPopulated, empty.State())
	require.Zero(t, empty.CIndexSize(0))
	require.NoError(t, empty.Finalize())
	require.Equal(t, BlockReady, empty.State())
	require.NoError(t, empty.Finalize())
	empty.Free()

	b, err := l.CreateFeaturesBlock(grouping.OneByteFeatures, []uint32{1, 2}, twoFeatures(t), samples,
		mapping.MakeDistributedObjectWith[uint64](1, 4))
	require.NoError(t, err)
	defer b.Free()
	require.Equal(t, BlockLaidOut, b.State())
	require.Equal(t, uint64(4), b.CIndexOffset(0))
	require.Equal(t, uint64(3), b.CIndexSize(0))
	require.Equal(t, []int{0, 1}, b.MissingColumns())

	require.True(t, errors.Is(b.WriteColumn(0, []uint8{1, 2, 3}, nil), ErrInvalidState))
	require.True(t, errors.Is(b.WriteColumn(2, []uint8{1, 2, 3}, nil), ErrInvalidState))

	// The index must hold the block's words.
	small, err := NewCompressedIndex(mgr, mapping.MakeDistributedObjectWith[uint64](1, 6))
	require.NoError(t, err)
	defer small.Free()
	require.True(t, errors.Is(b.WriteColumn(0, []uint8{1, 2, 3}, small), ErrInvalidState))

	cindex, err := NewCompressedIndex(mgr, mapping.MakeDistributedObjectWith[uint64](1, 7))
	require.NoError(t, err)
	defer cindex.Free()
	require.NoError(t, b.WriteColumn(1, []uint8{2, 1, 0}, cindex))
	require.Equal(t, BlockLaidOut, b.State())
	require.True(t, errors.Is(b.Finalize(), ErrInvalidState))
	require.NoError(t, b.WriteColumn(0, []uint8{3, 2, 1}, cindex))
	require.Equal(t, BlockPopulated, b.State())
	require.NoError(t, b.Finalize())
	require.Equal(t, BlockReady, b.State())

	words, err := cindex.ReadWords(0, 0, 7)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 0, 0, 0, 0x03020000, 0x02010000, 0x01000000}, words)

	// Writes to a ready block are allowed and keep it ready.
	require.NoError(t, b.WriteColumn(1, []uint8{0, 0, 0}, cindex))
	require.Equal(t, BlockReady, b.State())
	bins, err := cindex.DecodeColumn(b.Feature(0).At(0), 3)
	require.NoError(t, err)
	require.Equal(t, []uint8{3, 2, 1}, bins)
}

func TestFeaturesBlockAccessors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mgr := newTestManager(t, device.Options{})
	defer mgr.Close()
	l := NewSingleDevLayout(mgr, nil)
	b, err := l.CreateFeaturesBlock(grouping.HalfByteFeatures, []uint32{1, 2}, twoFeatures(t),
		mapping.MakeSingleMapping(0, 5), mapping.MakeDistributedObject[uint64](1))
	require.NoError(t, err)
	defer b.Free()

	require.Equal(t, grouping.HalfByteFeatures, b.Policy())
	require.Equal(t, []uint32{1, 2}, b.Grid().FeatureIDs)
	require.Equal(t, uint64(5), b.BinFeatureCount(0))
	require.Equal(t, "[1:1/2 2:1/3]", b.FoldsHistogram(0).String())
	require.Equal(t, mapping.MakeSingleMapping(0, 5), b.HistogramsMapping())

	descriptors, err := b.FeaturesDevice().Read()
	require.NoError(t, err)
	require.Equal(t, []Feature{b.Feature(0).At(0), b.Feature(1).At(0)}, descriptors)
	require.Equal(t, descriptors, b.Features(0))
	binFeatures, err := b.BinFeaturesForBestSplits().Read()
	require.NoError(t, err)
	require.Equal(t, b.BinFeatures(), binFeatures)
}

func TestPartitionFeatures(t *testing.T) {
	d := grid.NewDescription()
	require.NoError(t, d.AddFloatFeature(1, []float32{0, 1, 2}))
	require.NoError(t, d.AddOneHotFeature(2, 2))
	require.NoError(t, d.AddOneHotFeature(3, 200))
	require.NoError(t, d.AddFloatFeature(4, []float32{0}))
	require.NoError(t, d.AddFloatFeature(5, nil))

	groups, err := PartitionFeatures(d, []uint32{3, 1, 2, 4, 5}, grouping.Auto)
	require.NoError(t, err)
	require.Equal(t, []PolicyGroup{
		{Policy: grouping.BinaryFeatures, FeatureIDs: []uint32{2, 4, 5}},
		{Policy: grouping.HalfByteFeatures, FeatureIDs: []uint32{1}},
		{Policy: grouping.OneByteFeatures, FeatureIDs: []uint32{3}},
	}, groups)

	groups, err = PartitionFeatures(d, []uint32{3, 1}, grouping.OneByteFeatures)
	require.NoError(t, err)
	require.Equal(t, []PolicyGroup{{Policy: grouping.OneByteFeatures, FeatureIDs: []uint32{3, 1}}}, groups)

	groups, err = PartitionFeatures(d, nil, grouping.Auto)
	require.NoError(t, err)
	require.Empty(t, groups)

	_, err = PartitionFeatures(d, []uint32{1}, grouping.Policy(9))
	require.True(t, IsConfigurationError(err))
	_, err = PartitionFeatures(d, []uint32{1, 6}, grouping.Auto)
	require.True(t, IsConfigurationError(err))
	_, err = PartitionFeatures(fakeInfo{7: 300}, []uint32{7}, grouping.Auto)
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "no grouping policy can represent it")
}

func TestIndexBuilder(t *testing.T) {
	defer leaktest.AfterTest(t)()

	logger := testutils.NewLogger(t)
	mgr := newTestManager(t, device.Options{})
	defer mgr.Close()

	info := twoFeatures(t)
	require.NoError(t, info.AddOneHotFeature(3, 40))
	samples := mapping.MakeSingleMapping(0, 5)
	b := NewIndexBuilder(mgr, info, samples, &Options{Logger: logger})
	blocks, err := b.AddFeatures([]uint32{1, 2})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, grouping.HalfByteFeatures, blocks[0].Policy())

	block, err := b.AddBlock(grouping.OneByteFeatures, []uint32{3})
	require.NoError(t, err)
	require.Equal(t, uint64(5), block.CIndexOffset(0))

	ix, err := b.Finish()
	require.NoError(t, err)
	defer ix.Close()
	require.Equal(t, uint64(10), ix.CompressedIndex().Size(0))
	require.True(t, logger.Contains("laid out 2 half-byte features on device 0"))
	require.True(t, logger.Contains("allocated compressed index on device 0: 2 blocks"))

	require.NoError(t, ix.WriteColumn(3, []uint8{39, 0, 1, 2, 3}))
	bins, err := ix.DecodeColumn(3)
	require.NoError(t, err)
	require.Equal(t, []uint8{39, 0, 1, 2, 3}, bins)
	ref, i, ok := ix.Lookup(2)
	require.True(t, ok)
	require.Equal(t, 1, i)
	require.Same(t, blocks[0], ref)
	_, _, ok = ix.Lookup(4)
	require.False(t, ok)
	require.True(t, errors.Is(ix.Finalize(), ErrInvalidState))

	_, err = b.Finish()
	require.True(t, errors.Is(err, ErrInvalidState))
	_, err = b.AddBlock(grouping.OneByteFeatures, []uint32{1})
	require.True(t, errors.Is(err, ErrInvalidState))
}

func TestIndexBuilderDuplicateFeature(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mgr := newTestManager(t, device.Options{})
	defer mgr.Close()
	b := NewIndexBuilder(mgr, twoFeatures(t), mapping.MakeSingleMapping(0, 5), nil)
	_, err := b.AddBlock(grouping.OneByteFeatures, []uint32{1})
	require.NoError(t, err)
	_, err = b.AddBlock(grouping.HalfByteFeatures, []uint32{2, 1})
	require.NoError(t, err)
	_, err = b.Finish()
	require.True(t, IsConfigurationError(err))
	require.ErrorContains(t, err, "feature 1 laid out in blocks 0 and 1")

	d, err := mgr.Device(0)
	require.NoError(t, err)
	require.NoError(t, d.Synchronize())
	require.Equal(t, device.Usage{}, d.Usage())
}
