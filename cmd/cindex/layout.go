// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/gbdtkit/cindex"
	"github.com/gbdtkit/cindex/grid"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var layoutConfig struct {
	features bool
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "print the layout of synthetic features",
	Long: `
Lay synthetic features out and print, for each features block, its grouping
policy, the compressed-index words it owns and its folds histogram. With
--descriptors, the descriptor of every feature is printed as well.
`,
	Args: cobra.NoArgs,
	RunE: runLayout,
}

func init() {
	layoutCmd.Flags().BoolVar(
		&layoutConfig.features, "descriptors", false, "print the descriptor of every feature")
}

func runLayout(cmd *cobra.Command, args []string) error {
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
	ix, err := buildIndex(mgr, opts, ds)
	if err != nil {
		return err
	}
	defer ix.Close()

	w := cmd.OutOrStdout()
	printBlocks(w, ix)
	for i, b := range ix.Blocks() {
		dev := b.Samples().DeviceID()
		if layoutConfig.features {
			fmt.Fprintf(w, "\nblock %d descriptors:\n", i)
			printDescriptors(w, b)
		}
		if h := b.FoldsHistogram(dev); h.TotalFeatures() > 0 {
			fmt.Fprintf(w, "\nblock %d bin-features per folds bucket %s:\n", i, h)
			fmt.Fprintln(w, plotFoldsHistogram(h))
		}
	}
	return nil
}

func printBlocks(w io.Writer, ix *cindex.Index) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Block", "Policy", "Features", "Bin-features", "Offset", "Words", "Size"})
	for i, b := range ix.Blocks() {
		dev := b.Samples().DeviceID()
		tbl.Append([]string{
			fmt.Sprint(i),
			b.Policy().String(),
			fmt.Sprint(b.FeatureCount()),
			fmt.Sprint(b.BinFeatureCount(dev)),
			fmt.Sprint(b.CIndexOffset(dev)),
			fmt.Sprint(b.CIndexSize(dev)),
			string(crhumanize.Bytes(b.CIndexSize(dev)*4, crhumanize.Compact, crhumanize.OmitI)),
		})
	}
	tbl.Render()
}

func printDescriptors(w io.Writer, b *cindex.FeaturesBlock) {
	dev := b.Samples().DeviceID()
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Index", "ID", "Bins", "Folds", "First fold", "Offset", "Shift", "Mask", "One-hot"})
	for i := 0; i < b.FeatureCount(); i++ {
		f := b.Feature(i).At(dev)
		tbl.Append([]string{
			fmt.Sprint(f.Index),
			fmt.Sprint(f.FeatureID),
			fmt.Sprint(f.BinCount),
			fmt.Sprint(f.Folds),
			fmt.Sprint(f.FirstFoldIndex),
			fmt.Sprint(f.Offset),
			fmt.Sprint(f.Shift),
			fmt.Sprintf("%#x", f.Mask),
			fmt.Sprint(f.OneHot),
		})
	}
	tbl.Render()
}

// plotFoldsHistogram plots the bin-features per bucket, up to the last
// non-empty bucket.
func plotFoldsHistogram(h grid.FoldsHistogram) string {
	last := 0
	for i := range h.BinFeatures {
		if h.BinFeatures[i] > 0 {
			last = i
		}
	}
	values := make([]float64, last+1)
	for i := range values {
		values[i] = float64(h.BinFeatures[i])
	}
	return asciigraph.Plot(values, asciigraph.Height(8))
}
