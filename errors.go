// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import "github.com/cockroachdb/errors"

// ErrConfiguration marks errors caused by an invalid layout request: more
// than one active device for a single-device layout, a device slice that does
// not cover the requested features, a feature whose bin count the grouping
// policy cannot represent, or a column that does not match its feature.
// These errors are detected before any device work is issued and retrying
// the same request fails identically.
var ErrConfiguration = errors.New("cindex: invalid configuration")

// ErrInvalidState marks operations issued out of order, such as writing a
// column before the block was laid out or finalizing a block whose columns
// have not all been written.
var ErrInvalidState = errors.New("cindex: invalid state")

func configErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrConfiguration)
}

func stateErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrInvalidState)
}

// IsConfigurationError returns true if err was caused by an invalid layout
// request.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
