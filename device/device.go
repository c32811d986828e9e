// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import (
	"context"
	"sync"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tokenbucket"
	"github.com/gbdtkit/cindex/internal/base"
	"github.com/gbdtkit/cindex/internal/invariants"
)

// Usage tracks the number and total size of the buffers allocated on a
// device.
type Usage struct {
	// Buffers is the number of live buffers.
	Buffers uint64
	// Bytes is the total size of all live buffers.
	Bytes uint64
}

func (u *Usage) inc(bytes uint64) {
	u.Buffers++
	u.Bytes += bytes
}

func (u *Usage) dec(bytes uint64) {
	u.Buffers = invariants.SafeSub(u.Buffers, 1)
	u.Bytes = invariants.SafeSub(u.Bytes, bytes)
}

func (u Usage) String() string {
	return redact.StringWithoutMarkers(u)
}

// SafeFormat implements redact.SafeFormatter.
func (u Usage) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s buffers (%s)", crhumanize.Count(u.Buffers, crhumanize.Compact),
		crhumanize.Bytes(u.Bytes, crhumanize.Compact, crhumanize.OmitI))
}

// Device is one compute device: a memory budget and a Stream.
type Device struct {
	id      int
	limit   uint64
	stream  *Stream
	metrics *Metrics
	logger  base.Logger

	// throttle is only used by the stream worker. It is nil when transfers
	// are not throttled.
	throttle *tokenbucket.TokenBucket

	mu struct {
		sync.Mutex
		usage Usage
	}
}

func newDevice(id int, opts *Options) *Device {
	d := &Device{
		id:      id,
		limit:   opts.MemoryLimit,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if opts.TransferBytesPerSecond > 0 {
		d.throttle = &tokenbucket.TokenBucket{}
		d.throttle.Init(tokenbucket.TokensPerSecond(opts.TransferBytesPerSecond),
			tokenbucket.Tokens(opts.TransferBytesPerSecond))
	}
	d.stream = newStream(d, opts.QueueDepth)
	return d
}

// ID returns the device id.
func (d *Device) ID() int {
	return d.id
}

// Stream returns the device's stream.
func (d *Device) Stream() *Stream {
	return d.stream
}

// Usage returns the device's current memory usage.
func (d *Device) Usage() Usage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.usage
}

// Synchronize waits for the device's stream to drain. See
// Stream.Synchronize.
func (d *Device) Synchronize() error {
	return d.stream.Synchronize()
}

// Launch issues a kernel to the device's stream. Device memory may only be
// accessed (through Buffer.Data) from inside a kernel.
func (d *Device) Launch(kernel string, fn func() error) error {
	d.metrics.launched(d.id, kernel)
	return d.stream.Enqueue(kernel, func(context.Context) error {
		return fn()
	})
}

func (d *Device) allocate(bytes uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limit > 0 && d.mu.usage.Bytes+bytes > d.limit {
		return errors.Mark(errors.Newf("device %d: cannot allocate %s with %s of %s in use",
			d.id, crhumanize.Bytes(bytes, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(d.mu.usage.Bytes, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(d.limit, crhumanize.Compact, crhumanize.OmitI)), ErrOutOfMemory)
	}
	d.mu.usage.inc(bytes)
	d.metrics.setAllocated(d.id, d.mu.usage.Bytes)
	return nil
}

func (d *Device) release(bytes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mu.usage.dec(bytes)
	d.metrics.setAllocated(d.id, d.mu.usage.Bytes)
}

// waitTransfer blocks the stream worker until bytes may be transferred.
func (d *Device) waitTransfer(ctx context.Context, bytes uint64) error {
	if d.throttle == nil || bytes == 0 {
		return nil
	}
	return d.throttle.WaitCtx(ctx, tokenbucket.Tokens(bytes))
}
