// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package grouping defines the policies governing how many features share one
// compressed-index word.
//
// A word is 32 bits wide. Each policy gives every feature a fixed bit width;
// features are assigned to consecutive slots of a word, with slot 0 occupying
// the most significant bits:
//
//	OneByteFeatures:  |  slot 0  |  slot 1  |  slot 2  |  slot 3  |
//	                   31      24 23      16 15       8 7        0
//
// A feature fits a policy if its bin count does not exceed 1<<bits.
package grouping

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// WordBits is the width of a compressed-index word.
const WordBits = 32

// Policy identifies a feature grouping policy.
type Policy uint8

const (
	// Auto is not a layout policy. It asks callers that partition features
	// to pick the densest policy for each feature (see Choose).
	Auto Policy = iota
	// BinaryFeatures packs 32 two-bin features per word.
	BinaryFeatures
	// HalfByteFeatures packs 8 features of at most 16 bins per word.
	HalfByteFeatures
	// OneByteFeatures packs 4 features of at most 256 bins per word.
	OneByteFeatures
)

// Policies lists the layout policies from densest to sparsest.
var Policies = []Policy{BinaryFeatures, HalfByteFeatures, OneByteFeatures}

var policyBits = [...]uint32{
	BinaryFeatures:   1,
	HalfByteFeatures: 4,
	OneByteFeatures:  8,
}

// Valid returns true if p is a layout policy.
func (p Policy) Valid() bool {
	return p >= BinaryFeatures && p <= OneByteFeatures
}

// BitsPerFeature returns the number of bits each feature occupies.
func (p Policy) BitsPerFeature() uint32 {
	p.mustBeValid()
	return policyBits[p]
}

// FeaturesPerWord returns the number of features sharing one word.
func (p Policy) FeaturesPerWord() uint32 {
	return WordBits / p.BitsPerFeature()
}

// Mask returns the mask applied to a shifted word to extract one feature.
func (p Policy) Mask() uint32 {
	return 1<<p.BitsPerFeature() - 1
}

// MaxBins returns the largest bin count the policy can represent.
func (p Policy) MaxBins() uint32 {
	return 1 << p.BitsPerFeature()
}

// CanProceed returns true if a feature with binCount bins fits the policy.
func (p Policy) CanProceed(binCount uint32) bool {
	return binCount > 0 && binCount <= p.MaxBins()
}

// Shift returns the bit shift of the given slot within a word.
func (p Policy) Shift(slot uint32) uint32 {
	if slot >= p.FeaturesPerWord() {
		panic(errors.AssertionFailedf("slot %d out of range for %s", slot, p))
	}
	return WordBits - p.BitsPerFeature()*(slot+1)
}

// WordCount returns the number of words needed per sample to hold
// featureCount features.
func (p Policy) WordCount(featureCount uint64) uint64 {
	perWord := uint64(p.FeaturesPerWord())
	return (featureCount + perWord - 1) / perWord
}

func (p Policy) mustBeValid() {
	if !p.Valid() {
		panic(errors.AssertionFailedf("%s is not a layout policy", p))
	}
}

// Choose returns the densest policy able to represent binCount bins. It
// returns false if no policy can.
func Choose(binCount uint32) (Policy, bool) {
	for _, p := range Policies {
		if p.CanProceed(binCount) {
			return p, true
		}
	}
	return Auto, false
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case BinaryFeatures:
		return "binary"
	case HalfByteFeatures:
		return "half-byte"
	case OneByteFeatures:
		return "one-byte"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// SafeValue implements redact.SafeValue.
func (Policy) SafeValue() {}

// Parse parses a policy name as produced by Policy.String.
func Parse(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary":
		return BinaryFeatures, nil
	case "half-byte", "halfbyte":
		return HalfByteFeatures, nil
	case "one-byte", "onebyte", "byte":
		return OneByteFeatures, nil
	case "auto":
		return Auto, nil
	default:
		return Auto, errors.Newf("unknown grouping policy %q", s)
	}
}
