package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/itissonu/genaiquery/internal/pkg/rag/textutil"
	"github.com/itissonu/genaiquery/internal/rag/store"
	"github.com/itissonu/genaiquery/pkg/llm"
)

// DefaultTopK 默认返回的相关块数量。
const DefaultTopK = 3

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
}

// DefaultRetrieverConfig 返回默认配置。
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		TopK: DefaultTopK,
	}
}

// RetrievalResult 表示检索结果。
type RetrievalResult struct {
	// Query 原始查询。
	Query string `json:"query"`
	// Results 检索结果列表，按相似度降序。
	Results []store.SearchResult `json:"results"`
	// HasContext 是否检索到可用上下文。
	HasContext bool `json:"hasContext"`
	// Degraded 本次检索是否因内部失败降级为空结果。
	Degraded bool `json:"degraded,omitempty"`
}

// Chunks 返回检索结果的文本内容，按相似度降序。
func (r *RetrievalResult) Chunks() []string {
	chunks := make([]string, len(r.Results))
	for i, res := range r.Results {
		chunks[i] = res.Content
	}
	return chunks
}

// Retriever 负责查询向量化与相似度检索。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
	}
}

// Retrieve 在项目范围内检索与查询最相关的文档块。
//
// 检索永不向上返回错误：查询向量化或向量检索失败时记录告警并
// 降级为空上下文，调用方据此回退到无上下文回答路径。
// topK 为 0 时使用配置的默认值。
func (r *Retriever) Retrieve(ctx context.Context, projectID, query string, topK int) *RetrievalResult {
	if topK <= 0 {
		topK = r.config.TopK
	}

	result := &RetrievalResult{
		Query:   query,
		Results: []store.SearchResult{},
	}

	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		logger.Warnw("failed to embed query, degrading to empty context",
			"project_id", projectID,
			"query", textutil.TruncateString(query, 80),
			"error", err.Error(),
		)
		result.Degraded = true
		return result
	}

	results, err := r.store.Search(ctx, projectID, embedding, topK)
	if err != nil {
		logger.Warnw("vector search failed, degrading to empty context",
			"project_id", projectID,
			"backend", r.store.Name(),
			"error", err.Error(),
		)
		result.Degraded = true
		return result
	}

	result.Results = results
	result.HasContext = len(results) > 0
	return result
}
