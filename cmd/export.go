package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/export"
	"github.com/sells-group/zoning-cli/internal/store"
)

var (
	exportTown          string
	exportCounty        string
	exportState         string
	exportMinConfidence float64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export extracted requirements to external systems",
}

var exportSalesforceCmd = &cobra.Command{
	Use:   "salesforce",
	Short: "Upsert requirements into Salesforce",
	Long:  "Upserts zoning requirements keyed by town, county, state, and zone code. Existing records are updated; new ones are created.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sfClient, err := initSalesforce()
		if err != nil {
			return err
		}

		exporter := export.New(st, sfClient, cfg.Salesforce.Object)
		if err := exporter.Validate(ctx); err != nil {
			return err
		}

		outcome, err := exporter.Export(ctx, store.RequirementFilter{
			Town:          exportTown,
			County:        exportCounty,
			State:         exportState,
			MinConfidence: exportMinConfidence,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d requirements: %d inserted, %d updated, %d failed\n",
			outcome.Total, outcome.Inserted, outcome.Updated, outcome.Failed)
		return nil
	},
}

func init() {
	exportSalesforceCmd.Flags().StringVar(&exportTown, "town", "", "filter by town")
	exportSalesforceCmd.Flags().StringVar(&exportCounty, "county", "", "filter by county")
	exportSalesforceCmd.Flags().StringVar(&exportState, "state", "", "filter by state")
	exportSalesforceCmd.Flags().Float64Var(&exportMinConfidence, "min-confidence", 0, "only export requirements at or above this confidence")

	exportCmd.AddCommand(exportSalesforceCmd)
	rootCmd.AddCommand(exportCmd)
}
