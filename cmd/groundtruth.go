package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/groundtruth"
	"github.com/sells-group/zoning-cli/pkg/notion"
)

var groundtruthCmd = &cobra.Command{
	Use:     "groundtruth",
	Aliases: []string{"gt"},
	Short:   "Manage the ground-truth corpus used for accuracy scoring",
}

var groundtruthImportCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.json>",
	Short: "Import verified requirements from a workbook or JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		importer := groundtruth.New(st)
		var outcome groundtruth.Outcome
		switch strings.ToLower(filepath.Ext(args[0])) {
		case ".xlsx":
			outcome, err = importer.ImportXLSX(ctx, args[0])
		case ".json":
			outcome, err = importer.ImportJSON(ctx, args[0])
		default:
			return eris.Errorf("unsupported ground-truth format: %s", filepath.Ext(args[0]))
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents, %d requirements\n",
			outcome.Documents, outcome.Requirements)
		return nil
	},
}

var groundtruthSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync document metadata from the Notion tracking database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Notion.Token == "" || cfg.Notion.GroundTruthDB == "" {
			return eris.New("notion token and ground_truth_db are required")
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

		importer := groundtruth.New(st)
		outcome, err := importer.SyncNotion(ctx, notion.NewClient(cfg.Notion.Token), cfg.Notion.GroundTruthDB)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "synced %d documents\n", outcome.Documents)
		return nil
	},
}

var groundtruthListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ground-truth documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		docs, err := st.ListGroundTruthDocs(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, d := range docs {
			fmt.Fprintf(out, "%s  %-30s  %-16s %-2s  zones=%d %s\n",
				d.ID, truncate(d.DocumentName, 30), truncate(d.Town, 16), d.State,
				d.NumberOfZones, d.Complexity)
		}
		fmt.Fprintf(out, "%d documents\n", len(docs))
		return nil
	},
}

func init() {
	groundtruthCmd.AddCommand(groundtruthImportCmd, groundtruthSyncCmd, groundtruthListCmd)
	rootCmd.AddCommand(groundtruthCmd)
}
