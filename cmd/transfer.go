package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/agency-crm/internal/reconcile"
)

var (
	transferBill     string
	transferOwner    string
	transferProperty string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move a property to the customer named on a new bill",
	Long:  "Marks the current owner's property SOLD and records it under the bill's customer, creating that customer if needed. Use after analyze reports CONFLICT_EXISTING_OWNER.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bill, err := readBill(transferBill)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Transfer(ctx, tenantContext(), reconcile.TransferRequest{
			Bill:       bill,
			OwnerID:    transferOwner,
			PropertyID: transferProperty,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	addTenantFlags(transferCmd)
	transferCmd.Flags().StringVar(&transferBill, "bill", "", "extracted bill JSON of the new owner")
	transferCmd.Flags().StringVar(&transferOwner, "owner", "", "current owner customer id")
	transferCmd.Flags().StringVar(&transferProperty, "property", "", "property id to transfer")
	for _, f := range []string{"bill", "owner", "property"} {
		_ = transferCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(transferCmd)
}
