package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/database"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the review tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the DDL of the review tables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), repository.Schema)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the review tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			if _, err := pg.DB.ExecContext(cmd.Context(), repository.Schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	})

	return cmd
}
