package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsTenant string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		var tenantID *string
		if statsTenant != "" {
			tenantID = &statsTenant
		}
		stats, err := app.engine.Stats(ctx, tenantID)
		if err != nil {
			return err
		}

		fmt.Printf("documents: %d\n", stats.IndexedDocuments)
		fmt.Printf("chunks:    %d\n", stats.TotalChunks)
		fmt.Printf("tokens:    %d\n", stats.TotalTokens)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsTenant, "tenant", "", "tenant ID (empty = public corpus)")
	rootCmd.AddCommand(statsCmd)
}
