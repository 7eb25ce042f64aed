package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// httpStatusError is implemented by adapter errors that carry a response status.
type httpStatusError interface {
	HTTPStatus() int
}

// Classify is the classifier for embedding and generation backends.
// Rate limits, server errors and timeouts are retried. A backend that is
// unreachable or misconfigured counts against the breaker but is not retried.
// Other client errors and cancellation neither retry nor trip the breaker.
func Classify(err error) ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorClassification{}
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrLLMUnavailable):
		return ErrorClassification{RecordFailure: true}
	}

	if status, ok := statusOf(err); ok {
		return classifyStatus(status)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{RecordFailure: true}
}

func classifyStatus(status int) ErrorClassification {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case status >= 400:
		return ErrorClassification{}
	default:
		return ErrorClassification{RecordFailure: true}
	}
}

func statusOf(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus(), true
	}
	return 0, false
}
