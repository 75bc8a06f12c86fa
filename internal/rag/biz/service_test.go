package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/itissonu/genaiquery/internal/rag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEmbedder 基于固定词表的词袋嵌入，文本共享词越多向量越接近。
// 用确定性的向量代替真实模型，便于验证排序语义。
type wordEmbedder struct {
	vocab []string
	fail  bool
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{
		vocab: []string{"users", "orders", "payments", "table", "id", "status", "total", "email"},
	}
}

func (e *wordEmbedder) embed(text string) []float64 {
	lower := strings.ToLower(text)
	vector := make([]float64, len(e.vocab))
	for i, word := range e.vocab {
		vector[i] = float64(strings.Count(lower, word))
	}
	return vector
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.fail {
		return nil, errors.New("embedder unavailable")
	}
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *wordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *wordEmbedder) Name() string { return "word" }

func newTestService(embedder *wordEmbedder) *RAGService {
	return NewRAGService(store.NewMemoryStore(), embedder, nil, nil, &ServiceConfig{
		IngestorConfig:  &IngestorConfig{ChunkSize: 80, ChunkOverlap: 10},
		RetrieverConfig: &RetrieverConfig{TopK: 3},
	})
}

const schemaDoc = `users table has id, name, email columns.
orders table has id, user_id, total and status columns.
payments table has id, order_id and amount columns.`

func TestIngestAndRetrieve(t *testing.T) {
	svc := newTestService(newWordEmbedder())
	ctx := context.Background()

	result, err := svc.Ingest(ctx, "p1", schemaDoc)
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ProjectID)
	assert.Greater(t, result.ChunkCount, 1)

	retrieval := svc.Retrieve(ctx, "p1", "what columns does the orders table have", 2)
	require.True(t, retrieval.HasContext)
	require.NotEmpty(t, retrieval.Results)

	// orders 相关的块排在最前
	assert.Contains(t, retrieval.Results[0].Content, "orders")
	chunks := retrieval.Chunks()
	assert.Len(t, chunks, len(retrieval.Results))
}

func TestIngestEmptyDocument(t *testing.T) {
	svc := newTestService(newWordEmbedder())

	_, err := svc.Ingest(context.Background(), "p1", "   \n\t  ")
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestReingestReplacesProject(t *testing.T) {
	svc := newTestService(newWordEmbedder())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "p1", schemaDoc)
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, "p1", "users table has id and email")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
}

func TestRetrieveUnknownProject(t *testing.T) {
	svc := newTestService(newWordEmbedder())

	retrieval := svc.Retrieve(context.Background(), "missing", "orders", 3)
	assert.False(t, retrieval.HasContext)
	assert.False(t, retrieval.Degraded)
	assert.Empty(t, retrieval.Results)
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	embedder := newWordEmbedder()
	svc := newTestService(embedder)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "p1", schemaDoc)
	require.NoError(t, err)

	embedder.fail = true
	retrieval := svc.Retrieve(ctx, "p1", "orders", 3)

	// 检索失败不报错，降级为空上下文
	assert.False(t, retrieval.HasContext)
	assert.True(t, retrieval.Degraded)
	assert.Empty(t, retrieval.Results)
}

func TestDeleteProject(t *testing.T) {
	svc := newTestService(newWordEmbedder())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "p1", schemaDoc)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProject(ctx, "p1"))

	stats, err := svc.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
}

func TestHealth(t *testing.T) {
	svc := newTestService(newWordEmbedder())

	status := svc.Health(context.Background())
	assert.Equal(t, "ok", status["store"])
	assert.Equal(t, "memory", status["backend"])
	assert.Equal(t, "word", status["embedder"])
}
