// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build invariants || race

package invariants

import "fmt"

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = true

// CheckBounds panics if the index is not in the range [0, n).
func CheckBounds[T Integer](i T, n T) {
	if i < 0 || i >= n {
		panic(fmt.Sprintf("index %d out of bounds [0, %d)", i, n))
	}
}

// SafeSub returns a - b. If a < b, it panics in invariant builds and returns 0
// in non-invariant builds.
func SafeSub[T Integer](a, b T) T {
	if a < b {
		panic(fmt.Sprintf("underflow: %d - %d", a, b))
	}
	return a - b
}

// KernelChecker is used to check that device memory is only touched from
// inside a running kernel.
type KernelChecker struct {
	depth int
}

// Enter records that a kernel started running.
func (k *KernelChecker) Enter() { k.depth++ }

// Exit records that a kernel finished running.
func (k *KernelChecker) Exit() {
	if k.depth == 0 {
		panic("kernel exit without enter")
	}
	k.depth--
}

// AssertInKernel panics if no kernel is running.
func (k *KernelChecker) AssertInKernel() {
	if k.depth == 0 {
		panic("device memory accessed outside of a kernel")
	}
}
