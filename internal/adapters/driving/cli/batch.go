package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// ErrAllQuestionsFailed is returned when no question in a batch was answered.
var ErrAllQuestionsFailed = errors.New("every question in the batch failed")

var (
	batchShowSources bool
	batchFormat      string
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Answer a file of questions",
	Long: `Answer one question per non-empty line of the file, or of standard input
when the file is '-' or omitted.

A failing question is reported and the batch continues. The command fails
only when every question failed.

With --format json the output is one array of answer records; with
--format yaml it is one list. A failed question appears in place as a
record with status "error" and an error field.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVarP(&batchShowSources, "show-sources", "s", false, "print the passages each answer is based on")
	batchCmd.Flags().StringVar(&batchFormat, "format", formatText, "output format (text, json or yaml)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errNotConfigured("answer")
	}
	if err := checkFormat(batchFormat); err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open questions: %w", err)
		}
		defer f.Close()
		in = f
	}

	questions, err := readQuestions(in)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(questions) == 0 {
		if batchFormat != formatText {
			return writeStructured(out, []answerRecord{}, batchFormat)
		}
		cmd.Println("No questions to answer.")
		return nil
	}

	var failed int
	if batchFormat == formatText {
		failed, err = answerBatchText(cmd, out, questions)
	} else {
		failed, err = answerBatchStructured(cmd, out, questions)
	}
	if err != nil {
		return err
	}
	if failed == len(questions) {
		return ErrAllQuestionsFailed
	}
	return nil
}

// readQuestions returns the trimmed non-empty lines of r.
func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			questions = append(questions, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

// answerBatchText writes each answer as it arrives, separated by rules.
func answerBatchText(cmd *cobra.Command, out io.Writer, questions []string) (int, error) {
	failed := 0
	for i, q := range questions {
		if i > 0 {
			fmt.Fprintln(out, strings.Repeat("=", 80))
		}
		answer, err := answerService.Answer(cmd.Context(), q, domain.AnswerOptions{})
		if err != nil {
			failed++
			logger.Warn("Question %d failed: %v", i+1, err)
			fmt.Fprintf(out, "Question: %s\nError: %v\n", q, err)
			continue
		}
		if err := writeAnswer(out, answer, formatText, batchShowSources); err != nil {
			return failed, err
		}
	}
	fmt.Fprintf(out, "\nAnswered %d of %d questions\n", len(questions)-failed, len(questions))
	return failed, nil
}

// answerBatchStructured collects every answer and error into one list so the
// output parses as a single JSON value or YAML document.
func answerBatchStructured(cmd *cobra.Command, out io.Writer, questions []string) (int, error) {
	failed := 0
	records := make([]answerRecord, 0, len(questions))
	for i, q := range questions {
		answer, err := answerService.Answer(cmd.Context(), q, domain.AnswerOptions{})
		if err != nil {
			failed++
			logger.Warn("Question %d failed: %v", i+1, err)
			records = append(records, errorRecord(q, err))
			continue
		}
		records = append(records, toAnswerRecord(answer))
	}
	return failed, writeStructured(out, records, batchFormat)
}
