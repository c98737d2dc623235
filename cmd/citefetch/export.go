// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citefetch/internal/endnote"
)

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Convert saved .enw citations to CSL-YAML",
	Long: `Export reads every .enw file in dir (default: the configured output
directory) and writes the records as a CSL-YAML bibliography, ready for
pandoc --citeproc. Output goes to stdout unless --out is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := viper.GetString("output_dir")
	if len(args) == 1 {
		dir = args[0]
	}
	recs, err := endnote.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no .enw files in %s", dir)
	}

	var w io.Writer = cmd.OutOrStdout()
	out, _ := cmd.Flags().GetString("out")
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := endnote.WriteCSL(recs, w); err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d citation(s) to %s\n", len(recs), out)
	}
	return nil
}
