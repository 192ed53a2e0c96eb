// Command review-cli is the operator tool for the review workers: it checks
// the activity registry, applies the database schema and runs a single
// review task against live infrastructure without going through Zeebe.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "review-cli",
	Short:         "Operate the felling licence review workers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(newRegistryCmd(), newDBCmd(), newRunCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
