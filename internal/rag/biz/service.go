package biz

import (
	"context"
	"time"

	"github.com/itissonu/genaiquery/internal/rag/metrics"
	"github.com/itissonu/genaiquery/internal/rag/store"
	"github.com/itissonu/genaiquery/pkg/llm"
)

// Service 定义检索服务接口。
type Service interface {
	// Ingest 摄入一个项目的文档内容，替换该项目已有数据。
	Ingest(ctx context.Context, projectID, content string) (*IngestResult, error)
	// Retrieve 在项目范围内检索与查询最相关的文档块。
	Retrieve(ctx context.Context, projectID, query string, topK int) *RetrievalResult
	// Stats 返回项目的统计信息。
	Stats(ctx context.Context, projectID string) (*store.ProjectStats, error)
	// ListProjects 列出所有已摄入数据的项目及其文档块数量。
	ListProjects(ctx context.Context) ([]store.ProjectStats, error)
	// DeleteProject 删除项目的全部数据。
	DeleteProject(ctx context.Context, projectID string) error
	// Health 返回各依赖组件的健康状态。
	Health(ctx context.Context) map[string]string
}

// ServiceConfig 检索服务配置。
type ServiceConfig struct {
	IngestorConfig   *IngestorConfig
	RetrieverConfig  *RetrieverConfig
	QueryCacheConfig *QueryCacheConfig
}

// RAGService 组合 Ingestor 与 Retriever，叠加查询缓存和指标收集。
type RAGService struct {
	ingestor  *Ingestor
	retriever *Retriever
	cache     *QueryCache
	store     store.VectorStore
	embedder  llm.EmbeddingProvider
	metrics   *metrics.Metrics
}

// NewRAGService 创建检索服务实例。
// 存储、嵌入供应商、缓存与指标均由调用方注入。
func NewRAGService(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	cache *QueryCache,
	m *metrics.Metrics,
	config *ServiceConfig,
) *RAGService {
	if config == nil {
		config = &ServiceConfig{}
	}
	if m == nil {
		m = metrics.New()
	}
	if cache == nil {
		cache = NewQueryCache(nil, config.QueryCacheConfig)
	}

	return &RAGService{
		ingestor:  NewIngestor(vectorStore, embedder, config.IngestorConfig),
		retriever: NewRetriever(vectorStore, embedder, config.RetrieverConfig),
		cache:     cache,
		store:     vectorStore,
		embedder:  embedder,
		metrics:   m,
	}
}

// WithQueryCache 替换查询缓存实例。
func (s *RAGService) WithQueryCache(cache *QueryCache) *RAGService {
	if cache != nil {
		s.cache = cache
	}
	return s
}

// Metrics 返回指标收集器。
func (s *RAGService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Ingest 摄入项目文档。
func (s *RAGService) Ingest(ctx context.Context, projectID, content string) (*IngestResult, error) {
	result, err := s.ingestor.Ingest(ctx, projectID, content)
	if err != nil {
		s.metrics.RecordIngest(0, err)
		return nil, err
	}
	s.metrics.RecordIngest(result.ChunkCount, nil)

	// 项目数据已变更，旧的检索结果不再可信
	s.cache.InvalidateProject(ctx, projectID)
	return result, nil
}

// Retrieve 检索项目内最相关的文档块。
func (s *RAGService) Retrieve(ctx context.Context, projectID, query string, topK int) *RetrievalResult {
	if cached := s.cache.Get(ctx, projectID, query, topK); cached != nil {
		s.metrics.RecordQuery(true)
		return cached
	}
	s.metrics.RecordQuery(false)

	start := time.Now()
	result := s.retriever.Retrieve(ctx, projectID, query, topK)
	if result.Degraded {
		s.metrics.RecordQueryDegraded()
		s.metrics.RecordRetrieval(time.Since(start), errDegraded)
		return result
	}
	s.metrics.RecordRetrieval(time.Since(start), nil)

	// 降级结果不缓存，避免固化临时故障
	s.cache.Set(ctx, projectID, query, topK, result)
	return result
}

// Stats 返回项目的统计信息。
func (s *RAGService) Stats(ctx context.Context, projectID string) (*store.ProjectStats, error) {
	return s.store.Stats(ctx, projectID)
}

// ListProjects 列出所有已摄入数据的项目及其文档块数量。
func (s *RAGService) ListProjects(ctx context.Context) ([]store.ProjectStats, error) {
	return s.store.ListProjects(ctx)
}

// DeleteProject 删除项目的全部数据。
func (s *RAGService) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.cache.InvalidateProject(ctx, projectID)
	return nil
}

// Health 返回各依赖组件的健康状态。
func (s *RAGService) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"store":    "ok",
		"backend":  s.store.Name(),
		"embedder": s.embedder.Name(),
	}
	if err := s.store.HealthCheck(ctx); err != nil {
		status["store"] = "unavailable: " + err.Error()
	}
	return status
}

// errDegraded 用于指标记录降级检索。
var errDegraded = &degradedError{}

type degradedError struct{}

func (e *degradedError) Error() string { return "retrieval degraded to empty context" }

// 确保 RAGService 实现了 Service 接口。
var _ Service = (*RAGService)(nil)
