package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

func TestBatchCmd_FromStdin(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("first question\n\n   \nsecond question\n"))

	out, err := executeCommand("batch")

	require.NoError(t, err)
	assert.Equal(t, []string{"first question", "second question"}, ts.answer.Questions)
	assert.Contains(t, out, "Question: first question")
	assert.Contains(t, out, "Question: second question")
	assert.Contains(t, out, "Answered 2 of 2 questions")
}

func TestBatchCmd_FromFile(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	path := filepath.Join(t.TempDir(), "questions.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha?\nbeta?\n"), 0o600))

	_, err := executeCommand("batch", path)

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha?", "beta?"}, ts.answer.Questions)
}

func TestBatchCmd_MissingFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("batch", filepath.Join(t.TempDir(), "none.txt"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open questions")
}

func TestBatchCmd_PartialFailureContinues(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AnswerFunc = func(q string, _ domain.AnswerOptions) (*domain.Answer, error) {
		if q == "bad" {
			return nil, errBackend
		}
		return groundedAnswer(q), nil
	}
	rootCmd.SetIn(strings.NewReader("bad\ngood\n"))

	out, err := executeCommand("batch", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "Error: backend down")
	assert.Contains(t, out, "Question: good")
	assert.Contains(t, out, "Answered 1 of 2 questions")
}

func TestBatchCmd_JSONIsOneArrayWithErrorRecords(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AnswerFunc = func(q string, _ domain.AnswerOptions) (*domain.Answer, error) {
		if q == "bad" {
			return nil, errBackend
		}
		return groundedAnswer(q), nil
	}
	rootCmd.SetIn(strings.NewReader("good\nbad\nalso good\n"))

	out, err := executeCommand("batch", "--format", "json")

	require.NoError(t, err)
	var records []answerRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "good", records[0].Question)
	assert.Equal(t, "grounded", records[0].Status)
	assert.Empty(t, records[0].Error)
	assert.Equal(t, "bad", records[1].Question)
	assert.Equal(t, "error", records[1].Status)
	assert.Equal(t, "backend down", records[1].Error)
	assert.Empty(t, records[1].Sources)
	assert.Equal(t, "also good", records[2].Question)
	assert.NotContains(t, out, "Answered")
}

func TestBatchCmd_YAMLIsOneDocument(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AnswerFunc = func(q string, _ domain.AnswerOptions) (*domain.Answer, error) {
		if q == "bad" {
			return nil, errBackend
		}
		return groundedAnswer(q), nil
	}
	rootCmd.SetIn(strings.NewReader("bad\ngood\n"))

	out, err := executeCommand("batch", "--format", "yaml")

	require.NoError(t, err)
	dec := yaml.NewDecoder(strings.NewReader(out))
	var records []answerRecord
	require.NoError(t, dec.Decode(&records))
	var extra any
	assert.Error(t, dec.Decode(&extra), "expected a single YAML document")
	require.Len(t, records, 2)
	assert.Equal(t, "error", records[0].Status)
	assert.Equal(t, "backend down", records[0].Error)
	assert.Equal(t, "grounded", records[1].Status)
}

func TestBatchCmd_JSONEmpty(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("\n"))

	out, err := executeCommand("batch", "--format", "json")

	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestBatchCmd_AllFail(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AnswerFunc = func(string, domain.AnswerOptions) (*domain.Answer, error) {
		return nil, errBackend
	}
	rootCmd.SetIn(strings.NewReader("one\ntwo\n"))

	_, err := executeCommand("batch")

	assert.ErrorIs(t, err, ErrAllQuestionsFailed)
	assert.Len(t, ts.answer.Questions, 2)
}

func TestBatchCmd_Empty(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("\n\n"))

	out, err := executeCommand("batch")

	require.NoError(t, err)
	assert.Contains(t, out, "No questions to answer.")
}

func TestReadQuestions(t *testing.T) {
	got, err := readQuestions(strings.NewReader("  a  \n\nb\r\n"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
