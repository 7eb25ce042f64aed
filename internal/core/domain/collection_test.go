package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionInfo_State(t *testing.T) {
	var missing *CollectionInfo
	assert.Equal(t, CollectionMissing, missing.State())
	assert.Equal(t, CollectionEmpty, (&CollectionInfo{Name: "docs"}).State())
	assert.Equal(t, CollectionReady, (&CollectionInfo{Name: "docs", ChunkCount: 3}).State())
}

func TestAnswerStatus(t *testing.T) {
	assert.True(t, AnswerGrounded.Generated())
	assert.False(t, AnswerRetrievalOnly.Generated())
	assert.False(t, AnswerGenerationFailed.Generated())
	assert.False(t, AnswerNoContext.Generated())

	for _, s := range []AnswerStatus{AnswerNoContext, AnswerGrounded, AnswerRetrievalOnly, AnswerGenerationFailed} {
		assert.NotEqual(t, unknownDescription, s.Description(), s.String())
	}
	assert.Equal(t, unknownDescription, AnswerStatus("other").Description())
}

func TestBuildResult_SkippedOutcomes(t *testing.T) {
	r := &BuildResult{Outcomes: []DocumentOutcome{
		{Path: "a.md", Chunks: 2},
		{Path: "b.doc", Err: ErrUnsupportedType},
		{Path: "c.pdf", Err: ErrParseFailed},
	}}

	skipped := r.SkippedOutcomes()

	assert.Len(t, skipped, 2)
	assert.Equal(t, "b.doc", skipped[0].Path)
	assert.Equal(t, "c.pdf", skipped[1].Path)
}
