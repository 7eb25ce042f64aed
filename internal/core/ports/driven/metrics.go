package driven

import (
	"time"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// MetricsRecorder receives observations from the indexing and query paths.
// This is an optional port - services skip recording when it is nil.
type MetricsRecorder interface {
	// ObserveBuild records a finished indexing run. result is nil when err is set.
	ObserveBuild(result *domain.BuildResult, err error)

	// ObserveEmbedding records one embedding request.
	ObserveEmbedding(texts int, duration time.Duration, err error)

	// ObserveAnswer records a finished question.
	ObserveAnswer(status domain.AnswerStatus, sources int, duration time.Duration)
}
