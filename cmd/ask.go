package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pensieve-ai/pensieve/internal/rag"
)

var (
	askTenant   string
	askNoStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered from the indexed corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		var tenantID *string
		if askTenant != "" {
			tenantID = &askTenant
		}
		req := rag.GenerateRequest{
			Query:    strings.Join(args, " "),
			TenantID: tenantID,
		}

		if askNoStream {
			resp, err := app.engine.Generate(ctx, req)
			if err != nil {
				return err
			}
			fmt.Println(resp.Answer)
			printSources(resp.Sources)
			return nil
		}

		events, err := app.engine.GenerateStream(ctx, req)
		if err != nil {
			return err
		}
		for ev := range events {
			switch ev.Type {
			case rag.StreamText:
				fmt.Print(ev.Text)
			case rag.StreamSources:
				fmt.Println()
				printSources(ev.Sources)
			case rag.StreamError:
				fmt.Println()
				return ev.Err
			}
		}
		return nil
	},
}

func printSources(sources []rag.SearchResult) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, s := range sources {
		name := s.Metadata["source_file"]
		if name == "" {
			name = s.DocumentID
		}
		fmt.Printf("  - %s (%.0f%%)\n", name, s.Similarity*100)
	}
}

func init() {
	askCmd.Flags().StringVar(&askTenant, "tenant", "", "tenant ID (empty = public corpus)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "wait for the complete answer")
	rootCmd.AddCommand(askCmd)
}
