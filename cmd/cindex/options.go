// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "print the effective options",
	Long: `
Print the options the other commands run with: the --options file with
--policy applied and defaults filled in. The output is itself a valid
--options file.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), opts.String())
		return nil
	},
}
