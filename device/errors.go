// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import "github.com/cockroachdb/errors"

// ErrOutOfMemory marks allocation failures caused by a device running out of
// memory.
var ErrOutOfMemory = errors.New("device: out of memory")

// ErrStreamClosed is returned when work is issued to a closed device.
var ErrStreamClosed = errors.New("device: stream closed")

// ErrUnknownDevice marks references to device ids the Manager does not own.
var ErrUnknownDevice = errors.New("device: unknown device")
