// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !invariants && !race

package invariants

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = false

// CheckBounds panics if the index is not in the range [0, n). No-op in
// non-invariant builds.
func CheckBounds[T Integer](i T, n T) {}

// SafeSub returns a - b. If a < b, it panics in invariant builds and returns 0
// in non-invariant builds.
func SafeSub[T Integer](a, b T) T {
	if a < b {
		return 0
	}
	return a - b
}

// KernelChecker is used to check that device memory is only touched from
// inside a running kernel. It is empty and does nothing in non-invariant
// builds.
type KernelChecker struct{}

// Enter records that a kernel started running.
func (k *KernelChecker) Enter() {}

// Exit records that a kernel finished running.
func (k *KernelChecker) Exit() {}

// AssertInKernel panics if no kernel is running.
func (k *KernelChecker) AssertInKernel() {}
