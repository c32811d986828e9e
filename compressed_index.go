// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/mapping"
)

// CompressedIndex is the device-resident array of packed words shared by the
// features blocks of a data set. Each device holds one buffer; a block owns
// the words [CIndexOffset(dev), CIndexOffset(dev)+CIndexSize(dev)) of it.
type CompressedIndex struct {
	buffers mapping.DistributedObject[*device.Buffer[uint32]]
	sizes   mapping.DistributedObject[uint64]
}

// NewCompressedIndex allocates a zero-filled compressed index holding
// sizes.At(dev) words on every device dev. Every bin of a zero-filled index
// decodes as 0.
func NewCompressedIndex(mgr *device.Manager, sizes mapping.DistributedObject[uint64]) (*CompressedIndex, error) {
	if sizes.DeviceCount() != mgr.DeviceCount() {
		return nil, errors.AssertionFailedf("sizes cover %d devices; manager has %d",
			sizes.DeviceCount(), mgr.DeviceCount())
	}
	c := &CompressedIndex{
		buffers: mapping.MakeDistributedObject[*device.Buffer[uint32]](mgr.DeviceCount()),
		sizes:   sizes.Clone(),
	}
	for dev := 0; dev < mgr.DeviceCount(); dev++ {
		if sizes.At(dev) == 0 {
			continue
		}
		d, err := mgr.Device(dev)
		if err != nil {
			c.Free()
			return nil, err
		}
		buf, err := device.NewBuffer[uint32](d, int(sizes.At(dev)))
		if err != nil {
			c.Free()
			return nil, errors.Wrapf(err, "allocating compressed index")
		}
		c.buffers.Set(dev, buf)
	}
	return c, nil
}

// Size returns the number of words held on dev.
func (c *CompressedIndex) Size(dev int) uint64 {
	if dev < 0 || dev >= c.sizes.DeviceCount() {
		return 0
	}
	return c.sizes.At(dev)
}

// Buffer returns the buffer held on dev, or nil if the index holds no words
// on dev.
func (c *CompressedIndex) Buffer(dev int) *device.Buffer[uint32] {
	if dev < 0 || dev >= c.buffers.DeviceCount() {
		return nil
	}
	return c.buffers.At(dev)
}

// ReadWords waits for pending device work and returns a host copy of the n
// words starting at offset on dev.
func (c *CompressedIndex) ReadWords(dev int, offset uint64, n uint64) ([]uint32, error) {
	buf := c.Buffer(dev)
	if buf == nil {
		return nil, stateErrorf("compressed index holds no words on device %d", dev)
	}
	return buf.ReadAt(int(offset), int(n))
}

// DecodeColumn waits for pending device work and returns the bins of the
// first sampleCount samples of feature f.
func (c *CompressedIndex) DecodeColumn(f Feature, sampleCount uint64) ([]uint8, error) {
	if !f.IsLaidOut() {
		return nil, stateErrorf("feature %d is not laid out", f.FeatureID)
	}
	words, err := c.ReadWords(f.DeviceID, f.Offset, sampleCount)
	if err != nil {
		return nil, err
	}
	bins := make([]uint8, len(words))
	for i, w := range words {
		bins[i] = Unpack(w, f)
	}
	return bins, nil
}

// Free releases the device memory of the index.
func (c *CompressedIndex) Free() {
	for dev := 0; dev < c.buffers.DeviceCount(); dev++ {
		if buf := c.buffers.At(dev); buf != nil {
			buf.Free()
			c.buffers.Set(dev, nil)
		}
	}
}
