// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/base"
	"github.com/gbdtkit/cindex/internal/invariants"
	"github.com/gbdtkit/cindex/mapping"
)

// SingleDevLayout lays features blocks out on the single active device of a
// device manager.
type SingleDevLayout struct {
	mgr    *device.Manager
	logger base.Logger
}

// NewSingleDevLayout returns a layout over the active device of mgr. A nil
// logger discards log messages.
func NewSingleDevLayout(mgr *device.Manager, logger base.Logger) *SingleDevLayout {
	if logger == nil {
		logger = base.NoopLogger{}
	}
	return &SingleDevLayout{mgr: mgr, logger: logger}
}

// ActiveDevice returns the manager's only active device. It fails with
// ErrConfiguration unless exactly one device is active.
func (l *SingleDevLayout) ActiveDevice() (int, error) {
	active := l.mgr.ActiveDevices()
	if len(active) != 1 {
		return 0, configErrorf("single device layout requires exactly one active device; %d are active",
			len(active))
	}
	return active[0], nil
}

// CreateLayout returns the mapping of featureCount features onto the active
// device.
func (l *SingleDevLayout) CreateLayout(featureCount uint64) (mapping.SingleMapping, error) {
	dev, err := l.ActiveDevice()
	if err != nil {
		return mapping.SingleMapping{}, err
	}
	return mapping.MakeSingleMapping(dev, featureCount), nil
}

// CreateFeaturesBlock lays out featureIDs with the given grouping policy.
//
// The block covers the samples of the samples mapping, which must live on the
// active device. Its compressed-index words start at cindexOffsets.At(dev);
// the caller reserves CIndexSize(dev) words from there and allocates the
// compressed index once every block is created (see IndexBuilder).
//
// Every configuration check happens before device memory is allocated.
func (l *SingleDevLayout) CreateFeaturesBlock(
	policy grouping.Policy,
	featureIDs []uint32,
	info grid.BinarizationInfo,
	samples mapping.SingleMapping,
	cindexOffsets mapping.DistributedObject[uint64],
) (*FeaturesBlock, error) {
	layout, err := l.CreateLayout(uint64(len(featureIDs)))
	if err != nil {
		return nil, err
	}
	return l.createFeaturesBlock(layout, policy, featureIDs, info, samples, cindexOffsets)
}

func (l *SingleDevLayout) createFeaturesBlock(
	layout mapping.SingleMapping,
	policy grouping.Policy,
	featureIDs []uint32,
	info grid.BinarizationInfo,
	samples mapping.SingleMapping,
	cindexOffsets mapping.DistributedObject[uint64],
) (*FeaturesBlock, error) {
	dev := samples.DeviceID()
	if active, err := l.ActiveDevice(); err != nil {
		return nil, err
	} else if dev != active {
		return nil, configErrorf("samples live on device %d; active device is %d", dev, active)
	}
	d, err := l.mgr.Device(dev)
	if err != nil {
		return nil, errors.Mark(err, ErrConfiguration)
	}
	if cindexOffsets.DeviceCount() <= dev {
		return nil, configErrorf("compressed index offsets cover %d devices; need device %d",
			cindexOffsets.DeviceCount(), dev)
	}
	devSlice := layout.DeviceSlice(dev)
	if devSlice.Left != 0 || devSlice.Right != uint64(len(featureIDs)) {
		return nil, configErrorf("device %d owns features %s; single device layout requires [0, %d)",
			dev, devSlice, len(featureIDs))
	}
	g, err := grid.NewCPUGrid(info, featureIDs)
	if err != nil {
		return nil, errors.Mark(err, ErrConfiguration)
	}

	docCount := samples.ObjectsSlice().Size()
	cindexOffset := cindexOffsets.At(dev)
	features, devSize, err := LayoutFeatures(policy, g, devSlice, dev, cindexOffset, docCount)
	if err != nil {
		return nil, err
	}

	b := newFeaturesBlock(policy, g, samples, l.mgr.DeviceCount())
	b.device = d
	b.cindexSizes.Set(dev, devSize)
	b.cindexOffsets.Set(dev, cindexOffset)
	for i := devSlice.Left; i < devSlice.Right; i++ {
		b.featuresHost[i].Set(dev, features[i-devSlice.Left])
	}
	b.foldsHistogram.Set(dev, g.FoldsHistogram(devSlice))

	b.binFeatures = BuildBinaryFeatures(g, mapping.Slice{Left: 0, Right: uint64(len(features))})
	b.binFeatureCount.Set(dev, uint64(len(b.binFeatures)))
	b.checkBinFeatureCount(dev)
	if invariants.Enabled {
		if h := b.foldsHistogram.At(dev); h.TotalBinFeatures() != uint64(len(b.binFeatures)) {
			panic(errors.AssertionFailedf("folds histogram holds %d bin-features; list holds %d",
				h.TotalBinFeatures(), len(b.binFeatures)))
		}
	}
	b.histogramsMapping = mapping.MakeSingleMapping(dev, b.binFeatureCount.At(dev))

	if err := l.upload(b, d, features); err != nil {
		b.Free()
		return nil, err
	}
	b.state = BlockLaidOut
	b.maybePopulated()

	l.logger.Infof("laid out %d %s features on device %d: %s at word %d, %d bin-features, folds %s",
		len(features), policy, dev,
		crhumanize.Bytes(devSize*4, crhumanize.Compact, crhumanize.OmitI),
		cindexOffset, len(b.binFeatures), b.foldsHistogram.At(dev))
	return b, nil
}

// upload mirrors the descriptors and the bin-features into device memory.
func (l *SingleDevLayout) upload(b *FeaturesBlock, d *device.Device, features []Feature) error {
	var err error
	if b.featuresDevice, err = device.NewBuffer[Feature](d, len(features)); err != nil {
		return err
	}
	if err := b.featuresDevice.Write(features); err != nil {
		return err
	}
	if b.binFeaturesForBestSplits, err = device.NewBuffer[BinFeature](d, len(b.binFeatures)); err != nil {
		return err
	}
	return b.binFeaturesForBestSplits.Write(b.binFeatures)
}

// WriteToCompressedIndex writes a binarized column into the compressed index:
// bins[s] becomes the bin of sample s of the feature. The bits of the other
// features sharing the feature's words are left untouched.
//
// The column is validated on the host, copied to the samples' device and
// merged into the index by a kernel issued to the device's stream. Columns of
// features sharing words must be written from one goroutine.
func WriteToCompressedIndex(
	feature mapping.DistributedObject[Feature],
	bins []uint8,
	samples mapping.SingleMapping,
	cindex *CompressedIndex,
) error {
	dev := samples.DeviceID()
	if dev < 0 || dev >= feature.DeviceCount() {
		return stateErrorf("feature has no descriptor for device %d", dev)
	}
	f := feature.At(dev)
	if !f.IsLaidOut() {
		return stateErrorf("feature is not laid out on device %d", dev)
	}
	n := samples.ObjectsSlice().Size()
	if uint64(len(bins)) != n {
		return configErrorf("column of feature %d has %d samples; want %d", f.FeatureID, len(bins), n)
	}
	buf := cindex.Buffer(dev)
	if buf == nil || f.Offset+n > uint64(buf.Len()) {
		return stateErrorf("compressed index on device %d cannot hold words [%d, %d) of feature %d",
			dev, f.Offset, f.Offset+n, f.FeatureID)
	}
	for s, bin := range bins {
		if uint32(bin) >= f.BinCount {
			return configErrorf("sample %d of feature %d has bin %d; feature has %d bins",
				s, f.FeatureID, bin, f.BinCount)
		}
	}

	d := buf.Device()
	tmp, err := device.NewBuffer[uint8](d, len(bins))
	if err != nil {
		return err
	}
	defer tmp.Free()
	if err := tmp.Write(bins); err != nil {
		return err
	}
	return d.Launch("write-compressed-feature", func() error {
		src := tmp.Data()
		dst := buf.Data()[f.Offset : f.Offset+n]
		for i, bin := range src {
			dst[i] = Pack(dst[i], f, bin)
		}
		return nil
	})
}
