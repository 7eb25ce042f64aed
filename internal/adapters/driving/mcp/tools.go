package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default from settings)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Question        string         `json:"question"`
	Answer          string         `json:"answer"`
	Status          string         `json:"status"`
	Collection      string         `json:"collection"`
	Model           string         `json:"model,omitempty"`
	GenerationError string         `json:"generation_error,omitempty"`
	Sources         []SourceOutput `json:"sources"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the text to find relevant passages for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of chunks to return (default from settings)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection"`
	Hits       []SourceOutput `json:"hits"`
	Count      int            `json:"count"`
}

// SourceOutput is one retrieved chunk.
type SourceOutput struct {
	Rank       int     `json:"rank"`
	SourceFile string  `json:"source_file"`
	SourcePath string  `json:"source_path,omitempty"`
	Page       int     `json:"page,omitempty"`
	Heading    string  `json:"heading,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// IndexStatusInput is the (empty) input schema for the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput is the output schema for the index_status tool.
type IndexStatusOutput struct {
	State          string `json:"state"`
	Name           string `json:"name,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
	ChunkSize      int    `json:"chunk_size,omitempty"`
	ChunkOverlap   int    `json:"chunk_overlap,omitempty"`
	ChunkCount     int    `json:"chunk_count"`
	DocumentCount  int    `json:"document_count"`
	BuiltAt        string `json:"built_at,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question using only the indexed documents, citing the passages used",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return the indexed passages most similar to a query, without generating an answer",
	}, s.handleRetrieve)

	if s.ports.Indexing != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_status",
			Description: "Report whether the document index exists and what it was built with",
		}, s.handleIndexStatus)
	}
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	answer, err := s.ports.Answer.Answer(ctx, input.Question, domain.AnswerOptions{TopK: input.TopK})
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		Question:        answer.Question,
		Answer:          answer.Text,
		Status:          answer.Status.String(),
		Collection:      answer.Collection.String(),
		Model:           answer.Model,
		GenerationError: answer.GenerationError,
		Sources:         toSourceOutputs(answer.Sources),
	}, nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	result, err := s.ports.Retriever.Retrieve(ctx, input.Query, domain.RetrieveOptions{TopK: input.TopK})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Query:      result.Query,
		Collection: result.State.String(),
		Hits:       toSourceOutputs(result.Hits),
		Count:      len(result.Hits),
	}, nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	info, err := s.ports.Indexing.Status(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, toIndexStatus(info), nil
}

func toSourceOutputs(hits []domain.ScoredChunk) []SourceOutput {
	out := make([]SourceOutput, len(hits))
	for i, hit := range hits {
		out[i] = SourceOutput{
			Rank:       i + 1,
			SourceFile: hit.Chunk.SourceFile(),
			SourcePath: hit.Chunk.SourcePath(),
			Page:       hit.Chunk.Page(),
			Heading:    hit.Chunk.Heading(),
			Score:      hit.Score,
			Content:    hit.Chunk.Content,
		}
	}
	return out
}

func toIndexStatus(info *domain.CollectionInfo) IndexStatusOutput {
	out := IndexStatusOutput{State: info.State().String()}
	if info == nil {
		return out
	}
	out.Name = info.Name
	out.EmbeddingModel = info.EmbeddingModel
	out.Dimensions = info.Dimensions
	out.ChunkSize = info.ChunkSize
	out.ChunkOverlap = info.ChunkOverlap
	out.ChunkCount = info.ChunkCount
	out.DocumentCount = info.DocumentCount
	if !info.BuiltAt.IsZero() {
		out.BuiltAt = info.BuiltAt.UTC().Format(time.RFC3339)
	}
	return out
}
