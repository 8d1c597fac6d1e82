package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pensieve-ai/pensieve/internal/rag"
)

var (
	searchTenant       string
	searchTopK         int
	searchThreshold    float64
	searchHybrid       bool
	searchVectorWeight float64
	searchNoPublic     bool
	searchSubject      string
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		var tenantID *string
		if searchTenant != "" {
			tenantID = &searchTenant
		}

		req := rag.NewSearchRequest(strings.Join(args, " "), tenantID)
		if searchTopK > 0 {
			req.TopK = searchTopK
		}
		if searchThreshold > 0 {
			req.Threshold = searchThreshold
		}
		if searchVectorWeight > 0 {
			req.VectorWeight = searchVectorWeight
		}
		req.UseHybrid = searchHybrid
		req.IncludePublic = !searchNoPublic
		req.Filters.Subject = searchSubject

		resp, err := app.engine.Search(ctx, req)
		if err != nil {
			return err
		}

		if searchJSON {
			resp.QueryEmbedding = nil
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if resp.NoContent {
			fmt.Println("no matching content")
			return nil
		}
		for i, r := range resp.Results {
			score := r.Similarity
			if req.UseHybrid {
				score = r.CombinedScore
			}
			scope := "tenant"
			if r.IsPublic {
				scope = "public"
			}
			fmt.Printf("%2d. [%.3f] %s#%d (%s)\n", i+1, score, r.DocumentID, r.ChunkIndex, scope)
			fmt.Printf("    %s\n", firstLine(r.Content, 120))
		}
		fmt.Printf("\n%d results in %v\n", len(resp.Results), resp.SearchTime)
		return nil
	},
}

// firstLine truncates content to a single display line.
func firstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit]) + "…"
	}
	return s
}

func init() {
	searchCmd.Flags().StringVar(&searchTenant, "tenant", "", "tenant ID (empty = public corpus)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum results (default from config)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "combine vector and keyword scores")
	searchCmd.Flags().Float64Var(&searchVectorWeight, "vector-weight", 0, "vector share of the hybrid score")
	searchCmd.Flags().BoolVar(&searchNoPublic, "no-public", false, "exclude the shared public corpus")
	searchCmd.Flags().StringVar(&searchSubject, "subject", "", "filter by subject metadata")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(searchCmd)
}
