package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the index",
	Long: `Report whether an index exists, how many chunks it holds and which
embedding model and chunking settings it was built with.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if indexingService == nil {
		return errNotConfigured("indexing")
	}

	info, err := indexingService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	switch info.State() {
	case domain.CollectionMissing:
		cmd.Println("Index: no index")
		cmd.Println("Run 'docusearch build' to create one.")
		return nil
	case domain.CollectionEmpty:
		cmd.Printf("Index: empty index (%s)\n", info.Name)
	default:
		cmd.Printf("Index: %d chunks (%s)\n", info.ChunkCount, info.Name)
	}

	cmd.Printf("  Documents:       %d\n", info.DocumentCount)
	cmd.Printf("  Embedding model: %s\n", info.EmbeddingModel)
	cmd.Printf("  Dimensions:      %d\n", info.Dimensions)
	cmd.Printf("  Chunking:        size %d, overlap %d\n", info.ChunkSize, info.ChunkOverlap)
	if !info.BuiltAt.IsZero() {
		cmd.Printf("  Built at:        %s\n", info.BuiltAt.Local().Format(time.DateTime))
	}
	return nil
}
