package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maim-pdmr/spiz/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Import press review exports (CSV or XLSX) into the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		importer := ingest.NewImporter(st, nil)
		for _, path := range args {
			summary, err := importer.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", path, summary.Message())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
