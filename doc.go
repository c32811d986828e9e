// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cindex lays binarized features out in a compressed index: a
// device-resident array of 32-bit words where several features share each
// word, one word per sample and group of features.
//
// Features are laid out in blocks. A FeaturesBlock holds the features laid
// out with one grouping policy (see package grouping), the descriptor telling
// where each feature's bits live, the ordered list of bin-features (split
// candidates) and the folds histogram split search uses for scheduling.
//
// Building an index goes through the following steps:
//
//	mgr, _ := device.NewManager(device.Options{})
//	b := cindex.NewIndexBuilder(mgr, info, samples, opts)
//	_, _ = b.AddFeatures(featureIDs)    // lay the blocks out
//	ix, _ := b.Finish()                 // allocate the compressed index
//	_ = ix.WriteColumn(featureID, bins) // once per feature
//	_ = ix.Finalize()                   // wait for the writes
//
// Each block moves through BlockLaidOut, BlockPopulated and BlockReady; see
// BlockState.
//
// Only single-device layouts are supported: every block lives on the one
// active device of the manager.
package cindex
