package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/district"
)

var (
	districtMunicipality string
	districtState        string
	districtCodeField    string
	districtNameField    string
)

var districtCmd = &cobra.Command{
	Use:   "district",
	Short: "Import and audit published zoning district inventories",
}

var districtImportCmd = &cobra.Command{
	Use:   "import <file.shp>",
	Short: "Import a municipal zoning shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if districtMunicipality == "" || districtState == "" {
			return eris.New("--municipality and --state are required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := district.New(st).ImportShapefile(ctx, args[0], district.ImportOptions{
			Municipality: districtMunicipality,
			State:        districtState,
			CodeField:    districtCodeField,
			NameField:    districtNameField,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d districts for %s, %s\n",
			n, districtMunicipality, districtState)
		return nil
	},
}

var districtAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare extracted zones against the published inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if districtMunicipality == "" || districtState == "" {
			return eris.New("--municipality and --state are required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := district.New(st).Audit(ctx, districtMunicipality, districtState)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s, %s: coverage %.1f%% (%d matched)\n",
			report.Municipality, report.State, report.Coverage()*100, report.Matched)
		for _, code := range report.Missing {
			fmt.Fprintf(out, "  missing:    %s\n", code)
		}
		for _, code := range report.Unexpected {
			fmt.Fprintf(out, "  unexpected: %s\n", code)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{districtImportCmd, districtAuditCmd} {
		c.Flags().StringVar(&districtMunicipality, "municipality", "", "municipality name (required)")
		c.Flags().StringVar(&districtState, "state", "", "state abbreviation (required)")
	}
	districtImportCmd.Flags().StringVar(&districtCodeField, "code-field", "", "shapefile attribute holding the zone code (auto-detected when empty)")
	districtImportCmd.Flags().StringVar(&districtNameField, "name-field", "", "shapefile attribute holding the zone name (auto-detected when empty)")

	districtCmd.AddCommand(districtImportCmd, districtAuditCmd)
	rootCmd.AddCommand(districtCmd)
}
