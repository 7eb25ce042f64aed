package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// Output formats for query results.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	queryShowSources bool
	queryTopK        int
	queryFormat      string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the passages most similar to the question and generate an answer
that uses only those passages.

When no generation backend is reachable the retrieved passages are shown
instead, labelled as a retrieval-only result.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVarP(&queryShowSources, "show-sources", "s", false, "print the passages the answer is based on")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages to retrieve (default retrieval.top_k)")
	queryCmd.Flags().StringVar(&queryFormat, "format", formatText, "output format (text, json or yaml)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errNotConfigured("answer")
	}
	if err := checkFormat(queryFormat); err != nil {
		return err
	}

	answer, err := answerService.Answer(cmd.Context(), args[0], domain.AnswerOptions{TopK: queryTopK})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return writeAnswer(cmd.OutOrStdout(), answer, queryFormat, queryShowSources)
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q (use text, json or yaml)", domain.ErrInvalidInput, format)
	}
}

// answerRecord is the serialised form of an answer.
type answerRecord struct {
	Question        string         `json:"question" yaml:"question"`
	Status          string         `json:"status" yaml:"status"`
	Answer          string         `json:"answer" yaml:"answer"`
	Collection      string         `json:"collection" yaml:"collection"`
	Model           string         `json:"model,omitempty" yaml:"model,omitempty"`
	GenerationError string         `json:"generation_error,omitempty" yaml:"generation_error,omitempty"`
	Error           string         `json:"error,omitempty" yaml:"error,omitempty"`
	Sources         []sourceRecord `json:"sources" yaml:"sources"`
}

// statusError marks a batch record whose question could not be answered.
const statusError = "error"

func errorRecord(question string, err error) answerRecord {
	return answerRecord{
		Question: question,
		Status:   statusError,
		Error:    err.Error(),
		Sources:  []sourceRecord{},
	}
}

type sourceRecord struct {
	Rank       int     `json:"rank" yaml:"rank"`
	SourceFile string  `json:"source_file" yaml:"source_file"`
	SourcePath string  `json:"source_path,omitempty" yaml:"source_path,omitempty"`
	Page       int     `json:"page,omitempty" yaml:"page,omitempty"`
	Heading    string  `json:"heading,omitempty" yaml:"heading,omitempty"`
	Score      float64 `json:"score" yaml:"score"`
	Content    string  `json:"content" yaml:"content"`
}

func toAnswerRecord(a *domain.Answer) answerRecord {
	rec := answerRecord{
		Question:        a.Question,
		Status:          a.Status.String(),
		Answer:          a.Text,
		Collection:      a.Collection.String(),
		Model:           a.Model,
		GenerationError: a.GenerationError,
		Sources:         make([]sourceRecord, len(a.Sources)),
	}
	for i, s := range a.Sources {
		rec.Sources[i] = sourceRecord{
			Rank:       i + 1,
			SourceFile: s.Chunk.SourceFile(),
			SourcePath: s.Chunk.SourcePath(),
			Page:       s.Chunk.Page(),
			Heading:    s.Chunk.Heading(),
			Score:      s.Score,
			Content:    s.Chunk.Content,
		}
	}
	return rec
}

// writeAnswer renders an answer in the given format.
func writeAnswer(w io.Writer, a *domain.Answer, format string, showSources bool) error {
	if format == formatText {
		writeAnswerText(w, a, showSources)
		return nil
	}
	return writeStructured(w, toAnswerRecord(a), format)
}

// writeStructured encodes v as a single JSON value or YAML document.
func writeStructured(w io.Writer, v any, format string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, format)
	}
}

func writeAnswerText(w io.Writer, a *domain.Answer, showSources bool) {
	fmt.Fprintf(w, "Question: %s\n\n", a.Question)

	switch a.Status {
	case domain.AnswerRetrievalOnly, domain.AnswerGenerationFailed:
		fmt.Fprintf(w, "[%s]\n", a.Status.Description())
	}
	fmt.Fprintf(w, "Answer: %s\n", a.Text)
	if a.GenerationError != "" {
		fmt.Fprintf(w, "Error: %s\n", a.GenerationError)
	}

	// Retrieval-only results are only useful with their passages.
	if !showSources && a.Status.Generated() {
		return
	}
	if len(a.Sources) == 0 {
		return
	}
	writeSources(w, a.Sources)
}

func writeSources(w io.Writer, sources []domain.ScoredChunk) {
	fmt.Fprintf(w, "\nSources (%d documents):\n", len(sources))
	for i, s := range sources {
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, s.Chunk.SourceFile(), s.Score)
		if preview := s.Preview(domain.PreviewLength); preview != "" {
			fmt.Fprintf(w, "      %s\n", preview)
		}
	}
}
