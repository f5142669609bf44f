package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agency-crm",
	Short: "Multi-tenant energy and telephony CRM reconciliation",
	Long:  "Extracts utility bills and ID cards, reconciles them against agency customers and properties, and applies operator decisions (transfers, merges).",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// Tenant flags shared by every command that touches agency data.
var (
	agencyID string
	actor    string
)

func addTenantFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&agencyID, "agency", "", "agency id (required)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the audit log")
	_ = cmd.MarkFlagRequired("agency")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
