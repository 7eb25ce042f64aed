// Package mcp provides an MCP (Model Context Protocol) server adapter for docusearch.
// It lets AI assistants ask questions against the local document index.
package mcp

import "errors"

// Port validation errors.
var (
	ErrMissingRetriever     = errors.New("mcp: retriever is required")
	ErrMissingAnswerService = errors.New("mcp: answer service is required")
)
