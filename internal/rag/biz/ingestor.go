package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/itissonu/genaiquery/internal/pkg/rag/textutil"
	"github.com/itissonu/genaiquery/internal/rag/store"
	"github.com/itissonu/genaiquery/pkg/llm"
)

// ErrNoChunks 文档切块后没有任何非空内容。
var ErrNoChunks = errors.New("document produced no chunks")

// IngestorConfig 摄入器配置。
type IngestorConfig struct {
	// ChunkSize 文档块大小（字符数）。
	ChunkSize int
	// ChunkOverlap 相邻块的重叠字符数。
	ChunkOverlap int
}

// DefaultIngestorConfig 返回默认配置。
func DefaultIngestorConfig() *IngestorConfig {
	return &IngestorConfig{
		ChunkSize:    textutil.DefaultChunkSize,
		ChunkOverlap: textutil.DefaultChunkOverlap,
	}
}

// IngestResult 摄入结果。
type IngestResult struct {
	// ProjectID 项目 ID。
	ProjectID string `json:"projectId"`
	// ChunkCount 本次摄入的文档块数量。
	ChunkCount int `json:"chunkCount"`
	// Provider 实际生成嵌入的供应商名称。
	Provider string `json:"provider"`
}

// Ingestor 负责文档摄入：切块、向量化、入库。
type Ingestor struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *IngestorConfig
}

// NewIngestor 创建摄入器实例。
func NewIngestor(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *IngestorConfig) *Ingestor {
	if config == nil {
		config = DefaultIngestorConfig()
	}
	return &Ingestor{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
	}
}

// Ingest 摄入一个项目的文档内容。
//
// 同一项目重复摄入时旧数据整体替换。嵌入按块顺序生成，
// 第 i 个向量对应第 i 个文档块。
func (i *Ingestor) Ingest(ctx context.Context, projectID, content string) (*IngestResult, error) {
	chunks := textutil.SplitIntoChunks(content, i.config.ChunkSize, i.config.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	embeddings, err := i.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d chunks, %d embeddings", len(chunks), len(embeddings))
	}

	now := time.Now().UnixMilli()
	docs := make([]store.Document, len(chunks))
	for idx, chunk := range chunks {
		docs[idx] = store.Document{
			ID:         store.NewDocumentID(projectID, idx, now),
			ProjectID:  projectID,
			Content:    chunk,
			ChunkIndex: idx,
			Embedding:  embeddings[idx],
			CreatedAt:  now,
		}
	}

	if err := i.store.Store(ctx, projectID, docs); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	logger.Infow("project ingested",
		"project_id", projectID,
		"chunks", len(docs),
		"content_hash", textutil.HashString(content),
		"provider", i.embedder.Name(),
		"backend", i.store.Name(),
	)

	return &IngestResult{
		ProjectID:  projectID,
		ChunkCount: len(docs),
		Provider:   i.embedder.Name(),
	}, nil
}
