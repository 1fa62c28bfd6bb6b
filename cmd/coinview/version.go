package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coinview/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		info := version.Get()
		if format == formatTable {
			fmt.Fprintln(os.Stdout, info.String())
			return nil
		}
		return writeStructured(os.Stdout, format, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringP("format", "f", formatTable, "output format: table, json or yaml")
}
