package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/itissonu/genaiquery/internal/rag/biz"
	"github.com/itissonu/genaiquery/internal/rag/handler"
	"github.com/itissonu/genaiquery/internal/rag/metrics"
	"github.com/itissonu/genaiquery/internal/rag/router"
	"github.com/itissonu/genaiquery/internal/rag/store"
	redisclient "github.com/itissonu/genaiquery/pkg/component/redis"
	"github.com/itissonu/genaiquery/pkg/llm"

	// 导入 Embedding 供应商以自动注册
	_ "github.com/itissonu/genaiquery/pkg/llm/hashembed"
	_ "github.com/itissonu/genaiquery/pkg/llm/ollama"
	_ "github.com/itissonu/genaiquery/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "genaiquery"

// Server represents the retrieval server and the resources it owns.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes all components and returns a new Server instance.
func (o *Options) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	o.Log.AddInitialField("service.name", Name)
	if err := o.Log.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting retrieval service...")

	var closers []func()

	// 2. 初始化向量存储，外部后端不可用时降级为内存存储
	vectorStore, err := store.New(ctx, &store.Config{
		Backend:      o.RAG.StoreBackend,
		EmbeddingDim: o.Embedding.Dimension,
		Chroma:       o.Chroma,
		Milvus:       o.Milvus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	closers = append(closers, func() { _ = vectorStore.Close(context.Background()) })
	logger.Infow("Vector store initialized", "backend", vectorStore.Name())

	// 3. 初始化 Redis（查询缓存与嵌入缓存共用）
	var redisClient *goredis.Client
	if o.Cache.QueryEnabled || o.Cache.EmbeddingEnabled {
		client, err := redisclient.New(ctx, o.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, caching disabled", "error", err.Error())
		} else {
			redisClient = client.Client()
			closers = append(closers, func() { _ = client.Close() })
			logger.Infow("Redis cache initialized", "addr", o.Redis.Addr())
		}
	}

	// 4. 初始化 Metrics（依赖注入，不使用全局单例）
	m := metrics.New()

	// 5. 构建 Embedding 供应商降级链
	embedder, err := o.buildEmbedder(m, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding providers: %w", err)
	}
	logger.Infow("Embedding providers initialized", "chain", o.Embedding.Providers)

	// 6. 初始化 Biz 层
	var queryCache *biz.QueryCache
	if o.Cache.QueryEnabled && redisClient != nil {
		queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       o.Cache.QueryTTL,
			KeyPrefix: "rag:query:",
		})
	}

	ragService := biz.NewRAGService(vectorStore, embedder, queryCache, m, &biz.ServiceConfig{
		IngestorConfig: &biz.IngestorConfig{
			ChunkSize:    o.RAG.ChunkSize,
			ChunkOverlap: o.RAG.ChunkOverlap,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			TopK: o.RAG.TopK,
		},
	})
	logger.Infow("Retrieval service initialized",
		"chunk_size", o.RAG.ChunkSize,
		"chunk_overlap", o.RAG.ChunkOverlap,
		"top_k", o.RAG.TopK,
		"cache.query", queryCache != nil,
	)

	// 7. 初始化 Handler 层与路由
	ragHandler := handler.NewRAGHandler(ragService, m)

	engine := newGinEngine()
	router.Register(engine, ragHandler)

	logger.Info("Retrieval service is ready")
	return &Server{
		httpServer: &http.Server{
			Addr:         o.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  o.HTTP.ReadTimeout,
			WriteTimeout: o.HTTP.WriteTimeout,
			IdleTimeout:  o.HTTP.IdleTimeout,
		},
		shutdownTimeout: o.HTTP.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// buildEmbedder 按配置的顺序构建供应商降级链。
// OpenAI 缺少 API Key 属于配置错误，在启动阶段直接失败。
func (o *Options) buildEmbedder(m *metrics.Metrics, redisClient *goredis.Client) (llm.EmbeddingProvider, error) {
	providers := make([]llm.EmbeddingProvider, 0, len(o.Embedding.Providers))
	for _, name := range o.Embedding.Providers {
		provider, err := llm.NewEmbeddingProvider(name, o.Embedding.ToConfigMap(name))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers = append(providers, provider)
	}

	chain, err := llm.NewFallbackChain(providers...)
	if err != nil {
		return nil, err
	}
	chain.WithFallbackHook(func(from, to string) {
		m.RecordEmbeddingFallback()
	})

	var embedder llm.EmbeddingProvider = chain
	if o.Cache.EmbeddingEnabled && redisClient != nil {
		embedder = llm.NewCachedEmbeddingProvider(chain, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       o.Cache.EmbeddingTTL,
			KeyPrefix: "emb:",
		})
	}
	return &meteredEmbedder{provider: embedder, metrics: m}, nil
}

// meteredEmbedder 在嵌入调用上记录指标。
type meteredEmbedder struct {
	provider llm.EmbeddingProvider
	metrics  *metrics.Metrics
}

func (e *meteredEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings, err := e.provider.Embed(ctx, texts)
	e.metrics.RecordEmbedding(err)
	return embeddings, err
}

func (e *meteredEmbedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	embedding, err := e.provider.EmbedSingle(ctx, text)
	e.metrics.RecordEmbedding(err)
	return embedding, err
}

func (e *meteredEmbedder) Name() string { return e.provider.Name() }

var _ llm.EmbeddingProvider = (*meteredEmbedder)(nil)

// newGinEngine 创建带恢复与访问日志中间件的 gin 引擎。
func newGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLogger())
	return engine
}

// accessLogger 结构化访问日志中间件。
func accessLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Run starts the HTTP server and blocks until a termination signal arrives,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for _, close := range s.closers {
			close()
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
