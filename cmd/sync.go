package main

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push every customer of an agency to Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		customers, err := env.Store.ListCustomers(ctx, agencyID)
		if err != nil {
			return err
		}
		report, err := env.Syncer.SyncAll(ctx, customers)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	addTenantFlags(syncCmd)
	rootCmd.AddCommand(syncCmd)
}
