package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pensieve-ai/pensieve/internal/rag"
)

var (
	indexTenant  string
	indexSubject string
	indexGrade   string
	indexUnit    string
	indexDocType string
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index documents into the corpus",
	Long: `Index reads each file, splits it into chunks, embeds them and stores
the result. The document ID is the file name without its extension;
indexing the same file again replaces the previous version atomically.

Without --tenant the documents go into the shared public corpus.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		var tenantID *string
		if indexTenant != "" {
			tenantID = &indexTenant
		}

		for _, path := range args {
			if err := indexFile(ctx, app, path, tenantID); err != nil {
				return fmt.Errorf("indexing %s: %w", path, err)
			}
		}
		return nil
	},
}

func indexFile(ctx context.Context, app *application, path string, tenantID *string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	docID := strings.TrimSuffix(name, filepath.Ext(name))

	result, err := app.engine.IndexDocument(ctx, rag.IndexRequest{
		DocumentID: docID,
		TenantID:   tenantID,
		Text:       string(data),
		Metadata: rag.Metadata{
			Subject:      indexSubject,
			Grade:        indexGrade,
			Unit:         indexUnit,
			SourceFile:   name,
			DocumentType: indexDocType,
		},
		OnProgress: func(p rag.Progress) {
			fmt.Fprintf(os.Stderr, "\r%-12s %s", p.State, docID)
		},
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if !result.Success {
		fmt.Printf("%s: skipped (%s)\n", docID, result.Reason)
		return nil
	}
	fmt.Printf("%s: %d chunks, %d tokens in %v\n",
		docID, result.ChunkCount, result.TotalTokens, result.Duration.Round(time.Millisecond))
	return nil
}

func init() {
	indexCmd.Flags().StringVar(&indexTenant, "tenant", "", "tenant ID (empty = public corpus)")
	indexCmd.Flags().StringVar(&indexSubject, "subject", "", "subject metadata")
	indexCmd.Flags().StringVar(&indexGrade, "grade", "", "grade metadata")
	indexCmd.Flags().StringVar(&indexUnit, "unit", "", "unit metadata")
	indexCmd.Flags().StringVar(&indexDocType, "type", "", "document type metadata")
	rootCmd.AddCommand(indexCmd)
}
