// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"encoding/binary"

	"github.com/cockroachdb/redact"
	"github.com/gbdtkit/cindex/grouping"
)

// Feature describes where one feature lives in the compressed index of one
// device. The bin of sample s is
//
//	Unpack(index[f.Offset+s], f)
//
// Features sharing a word differ only by Shift. A Feature is immutable once
// built; the zero Feature describes a feature that is not laid out.
type Feature struct {
	// Offset is the index of the word holding sample 0, counted from the
	// start of the device's compressed index.
	Offset uint64
	// Shift is the position of the feature's lowest bit within the word.
	Shift uint32
	// Mask selects the feature's bits once the word is shifted.
	Mask uint32
	// BitWidth is the number of bits the feature occupies.
	BitWidth uint32
	// BinCount is the number of bins of the feature.
	BinCount uint32
	// FirstFoldIndex is the position of the feature's first bin-feature in
	// the block's bin-feature list.
	FirstFoldIndex uint32
	// Folds is the number of bin-features derived from the feature.
	Folds uint32
	// Index is the feature's position within its block.
	Index uint32
	// FeatureID is the feature's id in the binarization grid.
	FeatureID uint32
	// OneHot is set for one-hot encoded categorical features.
	OneHot bool
	// Policy is the grouping policy the feature was laid out with.
	Policy grouping.Policy
	// DeviceID is the device holding the feature's words.
	DeviceID int
}

// IsLaidOut returns true if f describes a feature placed in an index.
func (f Feature) IsLaidOut() bool {
	return f.Mask != 0
}

// Word returns the index of the word holding the given sample.
func (f Feature) Word(sample uint64) uint64 {
	return f.Offset + sample
}

// Pack returns word with the feature's bits replaced by bin. The bits of every
// other feature sharing the word are preserved.
func Pack(word uint32, f Feature, bin uint8) uint32 {
	return word&^(f.Mask<<f.Shift) | (uint32(bin)&f.Mask)<<f.Shift
}

// Unpack extracts the feature's bin from word.
func Unpack(word uint32, f Feature) uint8 {
	return uint8((word >> f.Shift) & f.Mask)
}

func (f Feature) appendBinary(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, f.Offset)
	for _, v := range [...]uint32{
		f.Shift, f.Mask, f.BitWidth, f.BinCount, f.FirstFoldIndex, f.Folds, f.Index, f.FeatureID,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	oneHot := byte(0)
	if f.OneHot {
		oneHot = 1
	}
	buf = append(buf, oneHot, byte(f.Policy))
	return binary.LittleEndian.AppendUint32(buf, uint32(f.DeviceID))
}

// String implements fmt.Stringer.
func (f Feature) String() string {
	return redact.StringWithoutMarkers(f)
}

// SafeFormat implements redact.SafeFormatter.
func (f Feature) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("f%d(id=%d) dev%d off=%d shift=%d mask=%#x bins=%d folds=%d@%d",
		f.Index, f.FeatureID, f.DeviceID, f.Offset, f.Shift, f.Mask, f.BinCount, f.Folds, f.FirstFoldIndex)
	if f.OneHot {
		w.SafeString(" one-hot")
	}
}

// BinFeature is one split candidate: "bin of feature FeatureIndex > BinID" for
// numeric features, "bin == BinID" for one-hot features. FeatureIndex is the
// feature's position within its block.
type BinFeature struct {
	FeatureIndex uint32
	BinID        uint32
}

// String implements fmt.Stringer.
func (b BinFeature) String() string {
	return redact.StringWithoutMarkers(b)
}

// SafeFormat implements redact.SafeFormatter.
func (b BinFeature) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d/%d", b.FeatureIndex, b.BinID)
}
