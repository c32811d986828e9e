// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	featureCount  int
	sampleCount   int
	maxBins       int
	oneHotPercent int
	seed          uint64
	policyName    string
	optionsPath   string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "cindex [command] (flags)",
	Short: "compressed index layout/benchmarking tool",
	Long: `
cindex lays synthetic binarized features out in a compressed index and
reports on the result. The features are generated from --seed, so runs with
the same flags produce the same layout.
`,
	SilenceUsage: true,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		layoutCmd,
		roundtripCmd,
		benchCmd,
		optionsCmd,
	)

	for _, cmd := range []*cobra.Command{layoutCmd, roundtripCmd, benchCmd, optionsCmd} {
		cmd.Flags().StringVar(
			&optionsPath, "options", "", "path to an OPTIONS file")
		cmd.Flags().StringVarP(
			&policyName, "policy", "p", "",
			"grouping policy (binary, half-byte, one-byte or auto); overrides --options")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "enable verbose event logging")
	}
	for _, cmd := range []*cobra.Command{layoutCmd, roundtripCmd, benchCmd} {
		cmd.Flags().IntVarP(
			&featureCount, "features", "f", 64, "number of features")
		cmd.Flags().IntVarP(
			&sampleCount, "samples", "n", 10000, "number of samples")
		cmd.Flags().IntVar(
			&maxBins, "max-bins", 64, "maximum number of bins of a feature (at most 256)")
		cmd.Flags().IntVar(
			&oneHotPercent, "one-hot-percent", 20,
			"percent (0-100) of features that are one-hot encoded")
		cmd.Flags().Uint64Var(
			&seed, "seed", 1, "seed of the synthetic features")
	}
	initBench()
}

func main() {
	log.SetFlags(0)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
