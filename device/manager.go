// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Manager owns a fixed set of devices and tracks which of them are active.
type Manager struct {
	opts    Options
	devices []*Device
	active  []int
}

// NewManager creates the devices described by opts.
func NewManager(opts Options) (*Manager, error) {
	opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{opts: opts}
	m.devices = make([]*Device, opts.Count)
	for i := range m.devices {
		m.devices[i] = newDevice(i, &m.opts)
	}
	m.active = normalizeDevices(opts.Active)
	return m, nil
}

func normalizeDevices(ids []int) []int {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// DeviceCount returns the number of devices, active or not.
func (m *Manager) DeviceCount() int {
	return len(m.devices)
}

// Device returns the device with the given id.
func (m *Manager) Device(id int) (*Device, error) {
	if id < 0 || id >= len(m.devices) {
		return nil, errors.Mark(errors.Newf("device %d out of range [0, %d)", id, len(m.devices)),
			ErrUnknownDevice)
	}
	return m.devices[id], nil
}

// ActiveDevices returns the ids of the active devices in ascending order.
func (m *Manager) ActiveDevices() []int {
	return slices.Clone(m.active)
}

// SetActiveDevices replaces the set of active devices.
func (m *Manager) SetActiveDevices(ids ...int) error {
	for _, id := range ids {
		if id < 0 || id >= len(m.devices) {
			return errors.Mark(errors.Newf("device %d out of range [0, %d)", id, len(m.devices)),
				ErrUnknownDevice)
		}
	}
	m.active = normalizeDevices(ids)
	return nil
}

// Synchronize waits for every device's stream to drain and returns the
// combined stream errors.
func (m *Manager) Synchronize() error {
	var err error
	for _, d := range m.devices {
		err = errors.CombineErrors(err, d.Synchronize())
	}
	return err
}

// Close drains and stops every device stream. Buffers must not be used after
// Close.
func (m *Manager) Close() error {
	var err error
	for _, d := range m.devices {
		err = errors.CombineErrors(err, d.stream.close())
	}
	return err
}
