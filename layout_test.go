// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cindex

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/gbdtkit/cindex/device"
	"github.com/gbdtkit/cindex/grid"
	"github.com/gbdtkit/cindex/grouping"
	"github.com/gbdtkit/cindex/internal/testutils"
	"github.com/gbdtkit/cindex/mapping"
	"github.com/stretchr/testify/require"
)

// parseDescription parses lines of the form
//
//	<feature-id> bins=<n>
//	<feature-id> one-hot=<categories>
//
// Numeric features get the borders 0, 1, ..., n-2.
func parseDescription(t *testing.T, input string) *grid.Description {
	d := grid.NewDescription()
	for _, line := range crstrings.Lines(input) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			t.Fatalf("malformed feature: %q", line)
		}
		id := parseUint32(t, fields[0])
		key, value, ok := strings.Cut(fields[1], "=")
		if !ok {
			t.Fatalf("malformed feature: %q", line)
		}
		n := parseUint32(t, value)
		switch key {
		case "bins":
			borders := make([]float32, n-1)
			for i := range borders {
				borders[i] = float32(i)
			}
			require.NoError(t, d.AddFloatFeature(id, borders))
		case "one-hot":
			require.NoError(t, d.AddOneHotFeature(id, n))
		default:
			t.Fatalf("unknown feature kind %q", key)
		}
	}
	return d
}

func parseUint32(t *testing.T, s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	require.NoError(t, err)
	return uint32(v)
}

func parseFeatureIDs(t *testing.T, s string) []uint32 {
	var ids []uint32
	for _, f := range strings.Fields(s) {
		ids = append(ids, parseUint32(t, f))
	}
	return ids
}

func parseBins(t *testing.T, s string) []uint8 {
	var bins []uint8
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseUint(f, 10, 8)
		require.NoError(t, err)
		bins = append(bins, uint8(v))
	}
	return bins
}

func formatBlock(buf *strings.Builder, i int, b *FeaturesBlock) {
	dev := b.Samples().DeviceID()
	fmt.Fprintf(buf, "block %d: %s offset=%d size=%d state=%s\n",
		i, b.Policy(), b.CIndexOffset(dev), b.CIndexSize(dev), b.State())
	for j := 0; j < b.FeatureCount(); j++ {
		fmt.Fprintf(buf, "  %s\n", b.Feature(j).At(dev))
	}
	buf.WriteString("  bin-features:")
	for _, bf := range b.BinFeatures() {
		fmt.Fprintf(buf, " %s", bf)
	}
	fmt.Fprintf(buf, "\n  folds: %s\n", b.FoldsHistogram(dev))
}

func TestLayoutDataDriven(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var (
		info    *grid.Description
		mgr     *device.Manager
		ix      *Index
		samples mapping.SingleMapping
	)
	reset := func() {
		if ix != nil {
			ix.Close()
			ix = nil
		}
		if mgr != nil {
			require.NoError(t, mgr.Close())
			mgr = nil
		}
	}
	defer reset()

	datadriven.RunTest(t, "testdata/layout", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			reset()
			info = parseDescription(t, td.Input)
			return ""

		case "build":
			reset()
			var policyName string
			var sampleCount int
			td.ScanArgs(t, "policy", &policyName)
			td.ScanArgs(t, "samples", &sampleCount)
			policy, err := grouping.Parse(policyName)
			require.NoError(t, err)

			mgr, err = device.NewManager(device.Options{Logger: testutils.NewLogger(t)})
			require.NoError(t, err)
			samples = mapping.MakeSingleMapping(0, uint64(sampleCount))
			b := NewIndexBuilder(mgr, info, samples, &Options{
				Logger: testutils.NewLogger(t),
				Policy: policy,
			})
			if _, err := b.AddFeatures(parseFeatureIDs(t, td.Input)); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			if ix, err = b.Finish(); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			var buf strings.Builder
			for i, block := range ix.Blocks() {
				formatBlock(&buf, i, block)
			}
			return buf.String()

		case "write":
			var featureID int
			td.ScanArgs(t, "feature", &featureID)
			if err := ix.WriteColumn(uint32(featureID), parseBins(t, td.Input)); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return "ok"

		case "decode":
			var featureID int
			td.ScanArgs(t, "feature", &featureID)
			bins, err := ix.DecodeColumn(uint32(featureID))
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return strings.Trim(fmt.Sprint(bins), "[]")

		case "words":
			words, err := ix.CompressedIndex().ReadWords(samples.DeviceID(), 0,
				ix.CompressedIndex().Size(samples.DeviceID()))
			require.NoError(t, err)
			var buf strings.Builder
			for i, w := range words {
				if i > 0 {
					buf.WriteString(" ")
				}
				fmt.Fprintf(&buf, "%08x", w)
			}
			return buf.String()

		case "state":
			var buf strings.Builder
			for i, block := range ix.Blocks() {
				fmt.Fprintf(&buf, "block %d: %s missing=%v\n", i, block.State(), block.MissingColumns())
			}
			return buf.String()

		case "finalize":
			if err := ix.Finalize(); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return "ok"

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}
