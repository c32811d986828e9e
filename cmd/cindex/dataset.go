// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/base"
	"github.com/gbdtkit/cindex/mapping"
	"golang.org/x/exp/rand"
)

// dataset is a synthetic set of binarized features.
type dataset struct {
	info    *grid.Description
	ids     []uint32
	samples int
	// columns[i] holds the bins of feature ids[i].
	columns [][]uint8
}

// makeDataset generates features with 1 to maxBins bins. Numeric features
// are binarized from uniformly distributed values; one-hot features get
// uniformly distributed categories.
func makeDataset(seed uint64, features, samples, maxBins, oneHotPercent int) (*dataset, error) {
	if features < 0 || samples < 0 {
		return nil, errors.Newf("invalid dataset size: %d features, %d samples", features, samples)
	}
	if maxBins < 1 || maxBins > grid.MaxBins {
		return nil, errors.Newf("--max-bins must be in [1, %d]", grid.MaxBins)
	}
	rng := rand.New(rand.NewSource(seed))
	ds := &dataset{
		info:    grid.NewDescription(),
		ids:     make([]uint32, features),
		samples: samples,
		columns: make([][]uint8, features),
	}
	values := make([]float32, samples)
	for i := range ds.ids {
		id := uint32(i)
		ds.ids[i] = id
		bins := 1 + rng.Intn(maxBins)
		if rng.Intn(100) < oneHotPercent {
			if err := ds.info.AddOneHotFeature(id, uint32(bins)); err != nil {
				return nil, err
			}
			col := make([]uint8, samples)
			for s := range col {
				col[s] = uint8(rng.Intn(bins))
			}
			ds.columns[i] = col
			continue
		}
		borders := make([]float32, bins-1)
		for j := range borders {
			borders[j] = float32(j)
		}
		if err := ds.info.AddFloatFeature(id, borders); err != nil {
			return nil, err
		}
		for s := range values {
			values[s] = rng.Float32()*float32(bins+1) - 1
		}
		ds.columns[i] = grid.Binarize(make([]uint8, 0, samples), borders, values)
	}
	return ds, nil
}

// loadOptions reads --options, applies --policy and --verbose, and validates
// the result.
func loadOptions() (*cindex.Options, error) {
	opts := &cindex.Options{}
	if optionsPath != "" {
		data, err := os.ReadFile(optionsPath)
		if err != nil {
			return nil, err
		}
		if err := opts.Parse(string(data)); err != nil {
			return nil, errors.Wrapf(err, "%s", optionsPath)
		}
	}
	if policyName != "" {
		p, err := grouping.Parse(policyName)
		if err != nil {
			return nil, err
		}
		opts.Policy = p
	}
	if verbose {
		opts.Logger = cindex.DefaultLogger{}
	} else {
		opts.Logger = base.NoopLogger{}
	}
	opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// buildIndex lays ds out and allocates its compressed index.
func buildIndex(mgr *device.Manager, opts *cindex.Options, ds *dataset) (*cindex.Index, error) {
	dev, err := cindex.NewSingleDevLayout(mgr, opts.Logger).ActiveDevice()
	if err != nil {
		return nil, err
	}
	b := cindex.NewIndexBuilder(mgr, ds.info, mapping.MakeSingleMapping(dev, uint64(ds.samples)), opts)
	if _, err := b.AddFeatures(ds.ids); err != nil {
		return nil, err
	}
	return b.Finish()
}

// writeColumns writes every column of ds into ix.
func writeColumns(ix *cindex.Index, ds *dataset) error {
	for i, id := range ds.ids {
		if err := ix.WriteColumn(id, ds.columns[i]); err != nil {
			return err
		}
	}
	return nil
}
