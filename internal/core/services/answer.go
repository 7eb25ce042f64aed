package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure AnswerSynthesizer implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerSynthesizer)(nil)
	_ driven.PromptStoreAware = (*AnswerSynthesizer)(nil)
)

// AnswerSynthesizer answers questions from retrieved chunks.
// Each question is independent; nothing is carried between calls.
type AnswerSynthesizer struct {
	retriever   driving.Retriever
	llm         driven.LLMService
	promptStore driven.PromptStore
	metrics     driven.MetricsRecorder
	generation  domain.GenerationSettings
}

// NewAnswerSynthesizer creates an answer synthesizer.
// The llm parameter is optional; without it every answer is retrieval-only.
func NewAnswerSynthesizer(
	retriever driving.Retriever,
	llm driven.LLMService,
	generation domain.GenerationSettings,
) *AnswerSynthesizer {
	if generation.ContextBudget <= 0 {
		generation.ContextBudget = domain.DefaultContextBudget
	}
	return &AnswerSynthesizer{
		retriever:  retriever,
		llm:        llm,
		generation: generation,
	}
}

// SetPromptStore sets the prompt store for the answer template.
func (a *AnswerSynthesizer) SetPromptStore(store driven.PromptStore) {
	a.promptStore = store
}

// SetMetrics sets an optional metrics recorder.
func (a *AnswerSynthesizer) SetMetrics(m driven.MetricsRecorder) {
	a.metrics = m
}

// Answer retrieves context for the question and generates a grounded answer
// when a backend is available. Generation problems are reported through the
// answer status; only invalid input and retrieval failures return an error.
func (a *AnswerSynthesizer) Answer(
	ctx context.Context, question string, opts domain.AnswerOptions,
) (*domain.Answer, error) {
	start := time.Now()

	answer, err := a.answer(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.ObserveAnswer(answer.Status, len(answer.Sources), time.Since(start))
	}
	return answer, nil
}

func (a *AnswerSynthesizer) answer(
	ctx context.Context, question string, opts domain.AnswerOptions,
) (*domain.Answer, error) {
	retrieved, err := a.retriever.Retrieve(ctx, question, domain.RetrieveOptions{TopK: opts.TopK})
	if err != nil {
		return nil, err
	}

	logger.Section("Answer")
	answer := &domain.Answer{
		Question:   retrieved.Query,
		Collection: retrieved.State,
		Sources:    []domain.ScoredChunk{},
	}

	if retrieved.Empty() {
		answer.Status = domain.AnswerNoContext
		answer.Text = domain.NoContextText
		if retrieved.State == domain.CollectionMissing {
			answer.Text = domain.NoIndexText
		}
		logger.Debug("No context retrieved (collection %s)", retrieved.State)
		return answer, nil
	}

	if a.llm == nil {
		logger.Debug("No generation backend configured")
		return retrievalOnly(answer, retrieved.Hits), nil
	}

	prompt, included := a.composePrompt(answer.Question, retrieved.Hits)
	logger.Debug("Prompt uses %d of %d chunks (%d runes)", len(included), len(retrieved.Hits), utf8.RuneCountInString(prompt))

	answer.Model = a.llm.ModelName()
	text, err := a.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   a.generation.MaxTokens,
		Temperature: a.generation.Temperature,
	})
	switch {
	case errors.Is(err, domain.ErrLLMUnavailable):
		logger.Warn("Generation backend unavailable: %v", err)
		answer.GenerationError = err.Error()
		return retrievalOnly(answer, retrieved.Hits), nil
	case err != nil:
		logger.Warn("Generation failed: %v", err)
		answer.Status = domain.AnswerGenerationFailed
		answer.Text = domain.GenerationErrorText
		answer.GenerationError = err.Error()
		answer.Sources = retrieved.Hits
		return answer, nil
	}

	answer.Status = domain.AnswerGrounded
	answer.Text = strings.TrimSpace(text)
	answer.Sources = included
	return answer, nil
}

func retrievalOnly(answer *domain.Answer, hits []domain.ScoredChunk) *domain.Answer {
	answer.Status = domain.AnswerRetrievalOnly
	answer.Text = domain.RetrievalOnlyText
	answer.Sources = hits
	return answer
}

// composePrompt fills the answer template with as many context blocks as fit
// the budget. Blocks are taken in relevance order and whole; the first block
// is always included.
func (a *AnswerSynthesizer) composePrompt(question string, hits []domain.ScoredChunk) (string, []domain.ScoredChunk) {
	var (
		blocks []string
		used   int
	)
	for i, hit := range hits {
		block := contextBlock(i+1, hit.Chunk)
		size := utf8.RuneCountInString(block)
		if i > 0 && used+size > a.generation.ContextBudget {
			logger.Debug("Context budget %d reached, dropping %d chunks", a.generation.ContextBudget, len(hits)-i)
			break
		}
		blocks = append(blocks, block)
		used += size
	}

	replacer := strings.NewReplacer(
		driven.PlaceholderContext, strings.Join(blocks, "\n\n"),
		driven.PlaceholderQuestion, question,
	)
	return replacer.Replace(a.template()), hits[:len(blocks)]
}

// template loads the answer template, falling back to the default when the
// store is unset, fails, or returns a template without both placeholders.
func (a *AnswerSynthesizer) template() string {
	if a.promptStore == nil {
		return driven.DefaultAnswerPrompt
	}
	tmpl, err := a.promptStore.Load(driven.PromptAnswer)
	if err != nil {
		logger.Warn("Failed to load answer prompt: %v", err)
		return driven.DefaultAnswerPrompt
	}
	if !strings.Contains(tmpl, driven.PlaceholderContext) || !strings.Contains(tmpl, driven.PlaceholderQuestion) {
		logger.Warn("Answer prompt is missing %s or %s, using default",
			driven.PlaceholderContext, driven.PlaceholderQuestion)
		return driven.DefaultAnswerPrompt
	}
	return tmpl
}

// contextBlock renders one numbered chunk with its source attribution.
func contextBlock(n int, c domain.Chunk) string {
	var where []string
	if page := c.Page(); page > 0 {
		where = append(where, fmt.Sprintf("page %d", page))
	}
	if heading := c.Heading(); heading != "" {
		where = append(where, "section "+heading)
	}

	header := fmt.Sprintf("[%d] %s", n, c.SourceFile())
	if len(where) > 0 {
		header += " (" + strings.Join(where, ", ") + ")"
	}
	return header + "\n" + strings.TrimSpace(c.Content)
}
