package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

func newRegistryCmd() *cobra.Command {
	var path string

	load := func() (*registry.ActivityRegistry, error) {
		if path == "" {
			return registry.Default()
		}
		return registry.LoadRegistry(path)
	}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Registry file (defaults to the embedded registry)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check naming, timeouts and schemas of every activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d activities valid\n", len(reg.Activities))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			return printActivities(cmd.OutOrStdout(), reg.Activities)
		},
	})

	return cmd
}

func printActivities(w io.Writer, activities []registry.Activity) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(activities)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK TYPE\tCONFIG KEY\tTIMEOUT\tSTATUS")
	for _, a := range activities {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.TaskType, a.ConfigKey, a.Timeout, a.ImplementationStatus)
	}
	return tw.Flush()
}
