// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip",
	Short: "write synthetic features and verify they decode unchanged",
	Long: `
Lay synthetic features out, write every column into the compressed index,
finalize the blocks and check that every column decodes to the bins that were
written.
`,
	Args: cobra.NoArgs,
	RunE: runRoundtrip,
}

func runRoundtrip(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	ds, err := makeDataset(seed, featureCount, sampleCount, maxBins, oneHotPercent)
	if err != nil {
		return err
	}
	mgr, err := opts.NewDeviceManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	start := crtime.NowMono()
	ix, err := buildIndex(mgr, opts, ds)
	if err != nil {
		return err
	}
	defer ix.Close()
	if err := writeColumns(ix, ds); err != nil {
		return err
	}
	if err := ix.Finalize(); err != nil {
		return err
	}
	for i, id := range ds.ids {
		got, err := ix.DecodeColumn(id)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, ds.columns[i]) {
			for s := range got {
				if got[s] != ds.columns[i][s] {
					return errors.Newf("feature %d: sample %d decodes as %d; wrote %d",
						id, s, got[s], ds.columns[i][s])
				}
			}
		}
	}
	elapsed := start.Elapsed()

	w := cmd.OutOrStdout()
	for i, b := range ix.Blocks() {
		fmt.Fprintf(w, "block %d: %s %s fingerprint=%016x\n", i, b.Policy(), b.State(), b.Fingerprint())
	}
	fmt.Fprintf(w, "verified %d features x %d samples in %d blocks (%.1fms)\n",
		len(ds.ids), ds.samples, len(ix.Blocks()), elapsed.Seconds()*1000)
	return nil
}
