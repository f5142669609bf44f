package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/agency-crm/internal/reconcile"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate customers or building addresses",
}

var (
	mergeTarget string
	mergeSource string
)

var mergeCustomersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Fold the source customer into the target and delete the source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Engine.MergeCustomers(ctx, tenantContext(), mergeTarget, mergeSource)
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var (
	mergeFamily    string
	mergeTargetKey string
	mergeSourceKey string
)

var mergeBuildingCmd = &cobra.Command{
	Use:   "building",
	Short: "Rewrite a duplicated address across a family",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.MergeBuilding(ctx, tenantContext(), reconcile.BuildingMergeRequest{
			FamilyID:  mergeFamily,
			TargetKey: mergeTargetKey,
			SourceKey: mergeSourceKey,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	addTenantFlags(mergeCustomersCmd)
	mergeCustomersCmd.Flags().StringVar(&mergeTarget, "target", "", "customer id that survives")
	mergeCustomersCmd.Flags().StringVar(&mergeSource, "source", "", "customer id that is deleted")
	_ = mergeCustomersCmd.MarkFlagRequired("target")
	_ = mergeCustomersCmd.MarkFlagRequired("source")

	addTenantFlags(mergeBuildingCmd)
	mergeBuildingCmd.Flags().StringVar(&mergeFamily, "family", "", "family id (head customer id)")
	mergeBuildingCmd.Flags().StringVar(&mergeTargetKey, "target", "", "address to keep")
	mergeBuildingCmd.Flags().StringVar(&mergeSourceKey, "source", "", "duplicate address to fold in")
	for _, f := range []string{"family", "target", "source"} {
		_ = mergeBuildingCmd.MarkFlagRequired(f)
	}

	mergeCmd.AddCommand(mergeCustomersCmd, mergeBuildingCmd)
	rootCmd.AddCommand(mergeCmd)
}
