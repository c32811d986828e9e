// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import (
	"context"
	"slices"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Buffer is an array of n values of type T resident in a device's memory.
//
// Buffer contents are only reachable through transfers (Write, Read) and
// kernels (Data). Host slices passed to Write are copied before Write
// returns, so a host buffer and a device buffer never alias.
type Buffer[T any] struct {
	dev   *Device
	data  []T
	bytes uint64
	freed bool
}

// NewBuffer allocates a zero-filled buffer of n values on dev.
func NewBuffer[T any](dev *Device, n int) (*Buffer[T], error) {
	if n < 0 {
		return nil, errors.AssertionFailedf("negative buffer length %d", n)
	}
	var zero T
	bytes := uint64(n) * uint64(unsafe.Sizeof(zero))
	if err := dev.allocate(bytes); err != nil {
		return nil, err
	}
	return &Buffer[T]{
		dev:   dev,
		data:  make([]T, n),
		bytes: bytes,
	}, nil
}

// Device returns the device owning the buffer.
func (b *Buffer[T]) Device() *Device {
	return b.dev
}

// Len returns the number of values in the buffer.
func (b *Buffer[T]) Len() int {
	return len(b.data)
}

// Bytes returns the size of the buffer in device memory.
func (b *Buffer[T]) Bytes() uint64 {
	return b.bytes
}

// Write issues a host-to-device copy of host into the buffer. len(host) must
// equal Len.
func (b *Buffer[T]) Write(host []T) error {
	return b.WriteAt(0, host)
}

// WriteAt issues a host-to-device copy of host into the buffer starting at
// offset.
func (b *Buffer[T]) WriteAt(offset int, host []T) error {
	if b.freed {
		return errors.AssertionFailedf("write to freed buffer")
	}
	if offset < 0 || offset+len(host) > len(b.data) {
		return errors.Newf("device %d: cannot write %d values at offset %d into buffer of %d",
			b.dev.id, len(host), offset, len(b.data))
	}
	staged := slices.Clone(host)
	bytes := b.bytes / uint64(max(len(b.data), 1)) * uint64(len(staged))
	return b.dev.stream.Enqueue("h2d", func(ctx context.Context) error {
		if err := b.dev.waitTransfer(ctx, bytes); err != nil {
			return err
		}
		copy(b.data[offset:], staged)
		b.dev.metrics.transferred(b.dev.id, "h2d", bytes)
		return nil
	})
}

// Read waits for all work issued to the device so far and returns a host copy
// of the buffer.
func (b *Buffer[T]) Read() ([]T, error) {
	return b.ReadAt(0, len(b.data))
}

// ReadAt waits for all work issued to the device so far and returns a host
// copy of the n values starting at offset.
func (b *Buffer[T]) ReadAt(offset, n int) ([]T, error) {
	if b.freed {
		return nil, errors.AssertionFailedf("read from freed buffer")
	}
	if offset < 0 || n < 0 || offset+n > len(b.data) {
		return nil, errors.Newf("device %d: cannot read %d values at offset %d from buffer of %d",
			b.dev.id, n, offset, len(b.data))
	}
	out := make([]T, n)
	bytes := b.bytes / uint64(max(len(b.data), 1)) * uint64(n)
	err := b.dev.stream.Enqueue("d2h", func(context.Context) error {
		copy(out, b.data[offset:offset+n])
		b.dev.metrics.transferred(b.dev.id, "d2h", bytes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := b.dev.stream.Synchronize(); err != nil {
		return nil, err
	}
	return out, nil
}

// Data returns the buffer's device memory. It may only be called from a
// kernel running on the buffer's device; invariant builds panic otherwise.
func (b *Buffer[T]) Data() []T {
	b.dev.stream.kernels.AssertInKernel()
	return b.data
}

// Free releases the buffer's device memory once all previously issued work
// has run. The buffer must not be used afterwards.
func (b *Buffer[T]) Free() {
	if b.freed {
		return
	}
	b.freed = true
	err := b.dev.stream.Enqueue("free", func(context.Context) error {
		b.data = nil
		return nil
	})
	if err != nil {
		// The stream is closed so nothing can reference the memory anymore.
		b.data = nil
	}
	b.dev.release(b.bytes)
}
