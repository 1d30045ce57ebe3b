package openai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
		WithMaxRetries(2),
		WithRetryBaseDelay(100*time.Millisecond),
	)

	meta := embedder.Metadata()
	assert.Equal(t, "custom-model", meta.ModelName)
	assert.Equal(t, 42, meta.Dimension)

	assert.Equal(t, 2, embedder.retry.maxRetries)
	assert.Equal(t, 100*time.Millisecond, embedder.retry.baseDelay)
}

func TestNewEmbedderDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key")

	meta := embedder.Metadata()
	assert.Equal(t, DefaultEmbeddingModel, meta.ModelName)
	assert.Equal(t, DefaultEmbeddingDimension, meta.Dimension)
	assert.Equal(t, DefaultMaxRetries, embedder.retry.maxRetries)
}
