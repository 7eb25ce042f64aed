package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/logger"
)

var buildRebuild bool

var buildCmd = &cobra.Command{
	Use:   "build [corpus]",
	Short: "Index a directory of documents",
	Long: `Parse, chunk and embed every supported document under the corpus
directory and write the chunks to the vector store.

If an index already exists it is reused unless --rebuild is given. A rebuild
writes to a staging collection and swaps it in only once every document has
been processed, so queries never see a half-built index.

The corpus defaults to the corpus.path setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildRebuild, "rebuild", false, "drop the existing index and re-index the corpus")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errNotConfigured("indexing")
	}

	req := domain.BuildRequest{
		Rebuild: buildRebuild,
		Progress: func(p domain.BuildProgress) {
			logger.Debug("[%d/%d] %s", p.Processed, p.Total, p.Current)
		},
	}
	if len(args) == 1 {
		req.CorpusPath = args[0]
	}

	result, err := indexingService.Build(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	printBuildResult(cmd, result)
	return nil
}

func printBuildResult(cmd *cobra.Command, result *domain.BuildResult) {
	if result.ShortCircuited {
		count := 0
		if result.Collection != nil {
			count = result.Collection.ChunkCount
		}
		cmd.Printf("Index already exists with %d chunks. Use --rebuild to re-index.\n", count)
		return
	}

	cmd.Printf("Indexed %d chunks from %d documents (%d skipped, %d ignored)\n",
		result.ChunksWritten, result.DocumentsIndexed, result.DocumentsSkipped, result.DocumentsIgnored)

	if skipped := result.SkippedOutcomes(); len(skipped) > 0 {
		cmd.Println()
		cmd.Println("Skipped documents:")
		for _, o := range skipped {
			cmd.Printf("  %s: %v\n", o.Path, o.Err)
		}
	}

	if len(result.Warnings) > 0 {
		cmd.Println()
		for _, w := range result.Warnings {
			cmd.Printf("Warning: %s\n", w)
		}
	}

	if result.Duration > 0 {
		logger.Info("Build finished in %s", result.Duration.Round(time.Millisecond))
	}
}
