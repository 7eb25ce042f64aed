package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for docusearch resources.
	uriScheme = "docusearch://"

	collectionURI = uriScheme + "collection"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Indexing == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         collectionURI,
		Name:        "collection",
		Description: "Metadata of the live document index",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)
}

// handleCollectionResource returns the live collection metadata as JSON.
func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	info, err := s.ports.Indexing.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}

	data, err := json.MarshalIndent(toIndexStatus(info), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling collection: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
