package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/postprocessors/chunker"
	"github.com/custodia-labs/docusearch/internal/postprocessors/source"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("source", buildSource)
}

// BuildPipeline constructs the pipeline described by cfg.
func (r *Registry) BuildPipeline(cfg domain.PipelineConfig) (*Pipeline, error) {
	if len(cfg.Processors) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no processors", domain.ErrInvalidConfig)
	}

	pipeline := NewPipeline()
	for _, name := range cfg.Processors {
		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, err
		}
		pipeline.Add(proc)
	}
	return pipeline, nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Runes per chunk (default: 512)
//   - overlap (int): Overlapping runes between chunks (default: 128)
//
// Sizes that are present but unusable are rejected rather than clamped.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	size, overlap := chunker.DefaultChunkSize, chunker.DefaultChunkOverlap

	if v, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		size = v
	}
	if v, ok := getIntFromConfig(cfg, "overlap"); ok {
		overlap = v
	}

	return chunker.NewValidated(size, overlap)
}

func buildSource(_ map[string]any) (driven.PostProcessor, error) {
	return source.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
