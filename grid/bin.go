// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package grid

import "sort"

// Bin returns the bin of value v for a numeric feature with the given
// ascending borders: the number of borders strictly below v.
func Bin(borders []float32, v float32) uint8 {
	return uint8(sort.Search(len(borders), func(i int) bool {
		return borders[i] >= v
	}))
}

// Binarize appends the bins of values to dst and returns the result.
func Binarize(dst []uint8, borders []float32, values []float32) []uint8 {
	for _, v := range values {
		dst = append(dst, Bin(borders, v))
	}
	return dst
}
