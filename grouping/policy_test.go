// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package grouping

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyGeometry(t *testing.T) {
	for _, tc := range []struct {
		policy  Policy
		bits    uint32
		perWord uint32
		mask    uint32
		maxBins uint32
	}{
		{BinaryFeatures, 1, 32, 0x1, 2},
		{HalfByteFeatures, 4, 8, 0xf, 16},
		{OneByteFeatures, 8, 4, 0xff, 256},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			require.True(t, tc.policy.Valid())
			require.Equal(t, tc.bits, tc.policy.BitsPerFeature())
			require.Equal(t, tc.perWord, tc.policy.FeaturesPerWord())
			require.Equal(t, tc.mask, tc.policy.Mask())
			require.Equal(t, tc.maxBins, tc.policy.MaxBins())

			// Slot 0 holds the most significant bits and the slots tile the
			// word without overlapping.
			var union uint32
			for slot := uint32(0); slot < tc.perWord; slot++ {
				bitsOfSlot := tc.mask << tc.policy.Shift(slot)
				require.Zero(t, union&bitsOfSlot, "slot %d overlaps", slot)
				union |= bitsOfSlot
			}
			require.Equal(t, uint32(0xffffffff), union)
			require.Equal(t, WordBits-tc.bits, tc.policy.Shift(0))
			require.Equal(t, uint32(0), tc.policy.Shift(tc.perWord-1))
			require.Panics(t, func() { tc.policy.Shift(tc.perWord) })
		})
	}
}

func TestPolicyCanProceed(t *testing.T) {
	require.False(t, BinaryFeatures.CanProceed(0))
	require.True(t, BinaryFeatures.CanProceed(1))
	require.True(t, BinaryFeatures.CanProceed(2))
	require.False(t, BinaryFeatures.CanProceed(3))
	require.True(t, HalfByteFeatures.CanProceed(16))
	require.False(t, HalfByteFeatures.CanProceed(17))
	require.True(t, OneByteFeatures.CanProceed(256))
	require.False(t, OneByteFeatures.CanProceed(257))
}

func TestPolicyWordCount(t *testing.T) {
	require.Equal(t, uint64(0), OneByteFeatures.WordCount(0))
	require.Equal(t, uint64(1), OneByteFeatures.WordCount(4))
	require.Equal(t, uint64(2), OneByteFeatures.WordCount(5))
	require.Equal(t, uint64(1), HalfByteFeatures.WordCount(8))
	require.Equal(t, uint64(2), HalfByteFeatures.WordCount(9))
	require.Equal(t, uint64(1), BinaryFeatures.WordCount(32))
	require.Equal(t, uint64(2), BinaryFeatures.WordCount(33))
}

func TestChoose(t *testing.T) {
	for _, tc := range []struct {
		bins uint32
		want Policy
		ok   bool
	}{
		{0, Auto, false},
		{1, BinaryFeatures, true},
		{2, BinaryFeatures, true},
		{3, HalfByteFeatures, true},
		{16, HalfByteFeatures, true},
		{17, OneByteFeatures, true},
		{256, OneByteFeatures, true},
		{257, Auto, false},
	} {
		t.Run(fmt.Sprint(tc.bins), func(t *testing.T) {
			p, ok := Choose(tc.bins)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, p)
		})
	}
}

func TestAutoIsNotALayoutPolicy(t *testing.T) {
	var zero Policy
	require.Equal(t, Auto, zero)
	require.False(t, Auto.Valid())
	require.False(t, Policy(42).Valid())
	require.Panics(t, func() { Auto.BitsPerFeature() })
}

func TestParse(t *testing.T) {
	for _, p := range append([]Policy{Auto}, Policies...) {
		got, err := Parse(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	got, err := Parse(" One-Byte ")
	require.NoError(t, err)
	require.Equal(t, OneByteFeatures, got)

	_, err = Parse("nibble")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nibble")
}
