package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/agency-crm/internal/compare"
	"github.com/sells-group/agency-crm/internal/offers"
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Manage agency price lists",
}

var offersImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import CTE or canvas price lists from CSV, XLSX or YAML",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		im := offers.NewImporter(env.Store)
		var total offers.Summary
		for _, path := range args {
			sum, err := im.ImportFile(ctx, agencyID, path)
			if err != nil {
				return err
			}
			total.Offers += sum.Offers
			total.Canvas += sum.Canvas
		}
		return printJSON(total)
	},
}

var compareBill string

var offersCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank the agency's energy offers against an extracted bill",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bill, err := readBill(compareBill)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Store.ListOffers(ctx, agencyID)
		if err != nil {
			return err
		}
		out, err := compare.CompareEnergy(bill, list, time.Now())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	addTenantFlags(offersImportCmd)
	addTenantFlags(offersCompareCmd)
	offersCompareCmd.Flags().StringVar(&compareBill, "bill", "", "extracted bill JSON")
	_ = offersCompareCmd.MarkFlagRequired("bill")

	offersCmd.AddCommand(offersImportCmd, offersCompareCmd)
	rootCmd.AddCommand(offersCmd)
}
