// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mapping

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// DistributedObject holds one value of type T per device.
//
// DistributedObject has reference semantics: copies share the same
// per-device values. Use Clone to obtain an independent copy.
type DistributedObject[T any] struct {
	values []T
}

// MakeDistributedObject returns a DistributedObject for deviceCount devices
// with every value set to the zero value.
func MakeDistributedObject[T any](deviceCount int) DistributedObject[T] {
	return DistributedObject[T]{values: make([]T, deviceCount)}
}

// MakeDistributedObjectWith returns a DistributedObject for deviceCount
// devices with every value set to v.
func MakeDistributedObjectWith[T any](deviceCount int, v T) DistributedObject[T] {
	d := MakeDistributedObject[T](deviceCount)
	for i := range d.values {
		d.values[i] = v
	}
	return d
}

// DeviceCount returns the number of devices the object holds values for.
func (d DistributedObject[T]) DeviceCount() int {
	return len(d.values)
}

// At returns the value held for dev.
func (d DistributedObject[T]) At(dev int) T {
	if dev < 0 || dev >= len(d.values) {
		panic(errors.AssertionFailedf("device %d out of range [0, %d)", dev, len(d.values)))
	}
	return d.values[dev]
}

// Set sets the value held for dev.
func (d DistributedObject[T]) Set(dev int, v T) {
	if dev < 0 || dev >= len(d.values) {
		panic(errors.AssertionFailedf("device %d out of range [0, %d)", dev, len(d.values)))
	}
	d.values[dev] = v
}

// Clone returns a copy that does not share values with d.
func (d DistributedObject[T]) Clone() DistributedObject[T] {
	return DistributedObject[T]{values: slices.Clone(d.values)}
}
