// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package device is the compute-offload abstraction the compressed index is
// built on.
//
// A Device owns memory that host code never aliases: host slices are copied
// into device Buffers by transfers, and device memory is only touched by
// kernels. Transfers and kernels issued to a device run asynchronously, in
// issue order, on the device's Stream. Failures are sticky and surface at the
// next synchronization point (Stream.Synchronize or a Buffer read).
//
// The Manager owns the devices and the set of active devices. It is passed
// explicitly to whatever needs to know which devices are active; there is no
// process-wide device state.
package device

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/internal/base"
)

const defaultQueueDepth = 64

// Options configures a Manager and its devices.
type Options struct {
	// Count is the number of devices. Defaults to 1.
	Count int
	// Active lists the initially active devices. Defaults to all devices.
	Active []int
	// MemoryLimit is the number of bytes each device can allocate. Zero means
	// unlimited.
	MemoryLimit uint64
	// TransferBytesPerSecond throttles host-to-device transfers of each
	// device. Zero means unlimited.
	TransferBytesPerSecond uint64
	// QueueDepth is the number of tasks a stream can buffer before issuing
	// blocks the host. Defaults to 64.
	QueueDepth int
	// Metrics, if set, receives device metrics.
	Metrics *Metrics
	// Logger is used to report stream failures. Defaults to
	// base.DefaultLogger.
	Logger base.Logger
}

// EnsureDefaults fills in default values for unset options.
func (o *Options) EnsureDefaults() {
	if o.Count <= 0 {
		o.Count = 1
	}
	if len(o.Active) == 0 {
		o.Active = make([]int, o.Count)
		for i := range o.Active {
			o.Active[i] = i
		}
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = defaultQueueDepth
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
}

// Validate checks that the options are consistent. EnsureDefaults is assumed
// to have been called.
func (o *Options) Validate() error {
	var buf strings.Builder
	seen := make(map[int]bool, len(o.Active))
	for _, id := range o.Active {
		if id < 0 || id >= o.Count {
			fmt.Fprintf(&buf, "active device %d out of range [0, %d)\n", id, o.Count)
		} else if seen[id] {
			fmt.Fprintf(&buf, "active device %d listed twice\n", id)
		}
		seen[id] = true
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}
