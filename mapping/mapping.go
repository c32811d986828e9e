// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package mapping describes how objects (features, samples, bin-features) are
// placed on compute devices.
//
// Only the single-device placement is implemented: every object lives on one
// device and all other devices own an empty slice.
package mapping

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Slice is the half-open range [Left, Right) of object indices.
type Slice struct {
	Left  uint64
	Right uint64
}

// MakeSlice returns the slice [left, right).
func MakeSlice(left, right uint64) Slice {
	if right < left {
		panic(errors.AssertionFailedf("invalid slice [%d, %d)", left, right))
	}
	return Slice{Left: left, Right: right}
}

// Size returns the number of indices in the slice.
func (s Slice) Size() uint64 {
	return s.Right - s.Left
}

// IsEmpty returns true if the slice contains no indices.
func (s Slice) IsEmpty() bool {
	return s.Right <= s.Left
}

// Contains returns true if other lies entirely within s. The empty slice is
// contained in every slice.
func (s Slice) Contains(other Slice) bool {
	return other.IsEmpty() || (s.Left <= other.Left && other.Right <= s.Right)
}

// String implements fmt.Stringer.
func (s Slice) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s Slice) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("[%d, %d)", s.Left, s.Right)
}

// SingleMapping places objects [0, size) on a single device.
type SingleMapping struct {
	deviceID int
	size     uint64
}

// MakeSingleMapping returns a mapping placing size objects on deviceID.
func MakeSingleMapping(deviceID int, size uint64) SingleMapping {
	return SingleMapping{deviceID: deviceID, size: size}
}

// DeviceID returns the device owning every object.
func (m SingleMapping) DeviceID() int {
	return m.deviceID
}

// DeviceSlice returns the objects assigned to dev. Devices other than the
// owning device receive the empty slice.
func (m SingleMapping) DeviceSlice(dev int) Slice {
	if dev != m.deviceID {
		return Slice{}
	}
	return Slice{Left: 0, Right: m.size}
}

// ObjectsSlice returns the slice of all objects covered by the mapping.
func (m SingleMapping) ObjectsSlice() Slice {
	return Slice{Left: 0, Right: m.size}
}

// Size returns the total number of objects covered by the mapping.
func (m SingleMapping) Size() uint64 {
	return m.size
}

// String implements fmt.Stringer.
func (m SingleMapping) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m SingleMapping) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("dev%d:%d", m.deviceID, m.size)
}
