// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/base"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

// Options holds the optional parameters for building compressed indexes.
type Options struct {
	// Logger is used to report layout decisions and device failures.
	// Defaults to DefaultLogger.
	Logger Logger

	// Policy is the grouping policy IndexBuilder.AddFeatures lays features
	// out with. The default, grouping.Auto, gives every feature the densest
	// policy able to represent its bins.
	Policy grouping.Policy

	// Devices configures the device manager created by NewDeviceManager.
	Devices struct {
		// Count is the number of devices. Defaults to 1.
		Count int
		// Active lists the active devices. Defaults to all devices.
		Active []int
		// MemoryLimit is the number of bytes each device can allocate. Zero
		// means unlimited.
		MemoryLimit uint64
		// TransferBytesPerSecond throttles host-to-device copies. Zero means
		// unlimited.
		TransferBytesPerSecond uint64
		// QueueDepth is the number of tasks a device stream buffers.
		QueueDepth int
	}

	// Metrics, if set, receives device metrics.
	Metrics *device.Metrics
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	if o.Devices.Count <= 0 {
		o.Devices.Count = 1
	}
	if len(o.Devices.Active) == 0 {
		o.Devices.Active = make([]int, o.Devices.Count)
		for i := range o.Devices.Active {
			o.Devices.Active[i] = i
		}
	}
	if o.Devices.QueueDepth <= 0 {
		o.Devices.QueueDepth = 64
	}
}

// Clone creates a shallow copy of the supplied options.
func (o *Options) Clone() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
		n.Devices.Active = append([]int(nil), o.Devices.Active...)
	}
	return n
}

// Validate verifies that the options are mutually consistent. EnsureDefaults
// is assumed to have been called.
func (o *Options) Validate() error {
	var buf strings.Builder
	if o.Policy != grouping.Auto && !o.Policy.Valid() {
		fmt.Fprintf(&buf, "Policy (%d) is not a grouping policy\n", o.Policy)
	}
	if o.Devices.Count < 1 {
		fmt.Fprintf(&buf, "Devices.Count (%d) must be >= 1\n", o.Devices.Count)
	}
	for _, id := range o.Devices.Active {
		if id < 0 || id >= o.Devices.Count {
			fmt.Fprintf(&buf, "Devices.Active (%d) must be in [0, %d)\n", id, o.Devices.Count)
		}
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.Mark(errors.New(buf.String()), ErrConfiguration)
}

// DeviceOptions returns the device.Options derived from o.
func (o *Options) DeviceOptions() device.Options {
	return device.Options{
		Count:                  o.Devices.Count,
		Active:                 append([]int(nil), o.Devices.Active...),
		MemoryLimit:            o.Devices.MemoryLimit,
		TransferBytesPerSecond: o.Devices.TransferBytesPerSecond,
		QueueDepth:             o.Devices.QueueDepth,
		Metrics:                o.Metrics,
		Logger:                 o.Logger,
	}
}

// NewDeviceManager creates the devices described by the options.
func (o *Options) NewDeviceManager() (*device.Manager, error) {
	o.EnsureDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return device.NewManager(o.DeviceOptions())
}

// String returns the options in the format accepted by Parse.
func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  policy=%s\n", o.Policy)
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Devices]\n")
	fmt.Fprintf(&buf, "  count=%d\n", o.Devices.Count)
	active := make([]string, len(o.Devices.Active))
	for i, id := range o.Devices.Active {
		active[i] = strconv.Itoa(id)
	}
	fmt.Fprintf(&buf, "  active=%s\n", strings.Join(active, ","))
	fmt.Fprintf(&buf, "  memory_limit=%d\n", o.Devices.MemoryLimit)
	fmt.Fprintf(&buf, "  transfer_bytes_per_second=%d\n", o.Devices.TransferBytesPerSecond)
	fmt.Fprintf(&buf, "  queue_depth=%d\n", o.Devices.QueueDepth)
	return buf.String()
}

// parseOptions splits INI-style options into sections and key-value pairs,
// calling visitKeyValue for every pair. Blank lines and lines starting with
// ';' or '#' are skipped.
func parseOptions(s string, visitKeyValue func(section, key, value string) error) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}
		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return errors.Newf("invalid key=value syntax: %q", errors.Safe(line))
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if err := visitKeyValue(section, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Parse parses the options from the specified string, as produced by String.
// Options absent from s keep their current value.
func (o *Options) Parse(s string) error {
	return parseOptions(s, func(section, key, value string) error {
		var err error
		switch section + "." + key {
		case "Options.policy":
			o.Policy, err = grouping.Parse(value)
		case "Devices.count":
			o.Devices.Count, err = strconv.Atoi(value)
		case "Devices.active":
			o.Devices.Active = o.Devices.Active[:0]
			for _, f := range strings.Split(value, ",") {
				if f = strings.TrimSpace(f); f == "" {
					continue
				}
				var id int
				if id, err = strconv.Atoi(f); err != nil {
					break
				}
				o.Devices.Active = append(o.Devices.Active, id)
			}
		case "Devices.memory_limit":
			o.Devices.MemoryLimit, err = strconv.ParseUint(value, 10, 64)
		case "Devices.transfer_bytes_per_second":
			o.Devices.TransferBytesPerSecond, err = strconv.ParseUint(value, 10, 64)
		case "Devices.queue_depth":
			o.Devices.QueueDepth, err = strconv.Atoi(value)
		default:
			return errors.Errorf("cindex: unknown option: %s.%s",
				errors.Safe(section), errors.Safe(key))
		}
		if err != nil {
			return errors.Wrapf(err, "cindex: parsing %s.%s", errors.Safe(section), errors.Safe(key))
		}
		return nil
	})
}
