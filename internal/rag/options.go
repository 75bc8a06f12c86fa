// Package rag implements the project retrieval service.
package rag

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/itissonu/genaiquery/internal/pkg/rag/textutil"
	"github.com/itissonu/genaiquery/internal/rag/biz"
	"github.com/itissonu/genaiquery/internal/rag/store"
	"github.com/itissonu/genaiquery/pkg/llm/hashembed"
	chromaopts "github.com/itissonu/genaiquery/pkg/options/chroma"
	httpopts "github.com/itissonu/genaiquery/pkg/options/http"
	logopts "github.com/itissonu/genaiquery/pkg/options/logger"
	milvusopts "github.com/itissonu/genaiquery/pkg/options/milvus"
	redisopts "github.com/itissonu/genaiquery/pkg/options/redis"
)

// Options 检索服务的全部配置。
type Options struct {
	HTTP      *httpopts.Options   `json:"http" mapstructure:"http"`
	Log       *logopts.Options    `json:"log" mapstructure:"log"`
	Redis     *redisopts.Options  `json:"redis" mapstructure:"redis"`
	Chroma    *chromaopts.Options `json:"chroma" mapstructure:"chroma"`
	Milvus    *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
	Embedding *EmbeddingOptions   `json:"embedding" mapstructure:"embedding"`
	RAG       *RAGOptions         `json:"rag" mapstructure:"rag"`
	Cache     *CacheOptions       `json:"cache" mapstructure:"cache"`
}

// EmbeddingOptions Embedding 供应商配置。
type EmbeddingOptions struct {
	// Providers 降级链中的供应商顺序，首个为主供应商。
	Providers []string `json:"providers" mapstructure:"providers"`

	// OllamaBaseURL Ollama 服务地址。
	OllamaBaseURL string `json:"ollama-base-url" mapstructure:"ollama-base-url"`
	// OllamaModel Ollama 嵌入模型。
	OllamaModel string `json:"ollama-model" mapstructure:"ollama-model"`
	// RequestDelay Ollama 批量嵌入的请求间隔。
	RequestDelay time.Duration `json:"request-delay" mapstructure:"request-delay"`

	// OpenAIBaseURL OpenAI 兼容 API 地址。
	OpenAIBaseURL string `json:"openai-base-url" mapstructure:"openai-base-url"`
	// OpenAIAPIKey OpenAI API 密钥（建议通过 OPENAI_API_KEY 环境变量提供）。
	OpenAIAPIKey string `json:"-" mapstructure:"openai-api-key"`
	// OpenAIModel OpenAI 嵌入模型。
	OpenAIModel string `json:"openai-model" mapstructure:"openai-model"`

	// Timeout 单次嵌入请求超时。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// Dimension 向量维度，离线供应商与 Milvus 建集合使用。
	Dimension int `json:"dimension" mapstructure:"dimension"`
}

// ToConfigMap 将指定供应商的配置转换为工厂函数所需的 map。
func (o *EmbeddingOptions) ToConfigMap(provider string) map[string]any {
	config := map[string]any{
		"timeout": o.Timeout,
	}

	switch provider {
	case "ollama":
		config["base_url"] = o.OllamaBaseURL
		config["embed_model"] = o.OllamaModel
		config["request_delay"] = o.RequestDelay
	case "openai":
		config["base_url"] = o.OpenAIBaseURL
		config["api_key"] = o.OpenAIAPIKey
		config["embed_model"] = o.OpenAIModel
	case "hash":
		config["embedding_dim"] = o.Dimension
	}

	return config
}

// RAGOptions 分块与检索配置。
type RAGOptions struct {
	// ChunkSize 文本块大小（Unicode 字符数）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`
	// ChunkOverlap 相邻块的重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	// TopK 默认返回的相关块数量。
	TopK int `json:"top-k" mapstructure:"top-k"`
	// StoreBackend 向量存储后端（memory、chroma、milvus）。
	StoreBackend string `json:"store-backend" mapstructure:"store-backend"`
}

// CacheOptions 查询与嵌入缓存配置。
type CacheOptions struct {
	// QueryEnabled 是否启用查询结果缓存（需要 Redis）。
	QueryEnabled bool `json:"query-enabled" mapstructure:"query-enabled"`
	// QueryTTL 查询缓存过期时间。
	QueryTTL time.Duration `json:"query-ttl" mapstructure:"query-ttl"`
	// EmbeddingEnabled 是否启用嵌入缓存（需要 Redis）。
	EmbeddingEnabled bool `json:"embedding-enabled" mapstructure:"embedding-enabled"`
	// EmbeddingTTL 嵌入缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`
}

// NewOptions 创建带默认值的 Options。
func NewOptions() *Options {
	return &Options{
		HTTP:   httpopts.NewOptions(),
		Log:    logopts.NewOptions(),
		Redis:  redisopts.NewOptions(),
		Chroma: chromaopts.NewOptions(),
		Milvus: milvusopts.NewOptions(),
		Embedding: &EmbeddingOptions{
			Providers:     []string{"ollama", "hash"},
			OllamaBaseURL: "http://localhost:11434",
			OllamaModel:   "nomic-embed-text",
			RequestDelay:  100 * time.Millisecond,
			OpenAIBaseURL: "https://api.openai.com/v1",
			OpenAIModel:   "text-embedding-3-small",
			Timeout:       30 * time.Second,
			Dimension:     768,
		},
		RAG: &RAGOptions{
			ChunkSize:    textutil.DefaultChunkSize,
			ChunkOverlap: textutil.DefaultChunkOverlap,
			TopK:         biz.DefaultTopK,
			StoreBackend: store.BackendMemory,
		},
		Cache: &CacheOptions{
			QueryEnabled:     false,
			QueryTTL:         5 * time.Minute,
			EmbeddingEnabled: false,
			EmbeddingTTL:     24 * time.Hour,
		},
	}
}

// AddFlags 注册全部配置的命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Chroma.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.addEmbeddingFlags(fs)
	o.addRAGFlags(fs)
	o.addCacheFlags(fs)
}

func (o *Options) addEmbeddingFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.Embedding.Providers, "embedding.providers", o.Embedding.Providers,
		"Ordered embedding provider chain, first entry is the primary")
	fs.StringVar(&o.Embedding.OllamaBaseURL, "embedding.ollama-base-url", o.Embedding.OllamaBaseURL,
		"Ollama server base URL")
	fs.StringVar(&o.Embedding.OllamaModel, "embedding.ollama-model", o.Embedding.OllamaModel,
		"Ollama embedding model")
	fs.DurationVar(&o.Embedding.RequestDelay, "embedding.request-delay", o.Embedding.RequestDelay,
		"Delay between consecutive Ollama embedding requests")
	fs.StringVar(&o.Embedding.OpenAIBaseURL, "embedding.openai-base-url", o.Embedding.OpenAIBaseURL,
		"OpenAI-compatible API base URL")
	fs.StringVar(&o.Embedding.OpenAIAPIKey, "embedding.openai-api-key", o.Embedding.OpenAIAPIKey,
		"OpenAI API key (prefer OPENAI_API_KEY env var)")
	fs.StringVar(&o.Embedding.OpenAIModel, "embedding.openai-model", o.Embedding.OpenAIModel,
		"OpenAI embedding model")
	fs.DurationVar(&o.Embedding.Timeout, "embedding.timeout", o.Embedding.Timeout,
		"Embedding request timeout")
	fs.IntVar(&o.Embedding.Dimension, "embedding.dimension", o.Embedding.Dimension,
		"Embedding vector dimension for the offline provider")
}

func (o *Options) addRAGFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.RAG.ChunkSize, "rag.chunk-size", o.RAG.ChunkSize,
		"Chunk size in unicode characters")
	fs.IntVar(&o.RAG.ChunkOverlap, "rag.chunk-overlap", o.RAG.ChunkOverlap,
		"Overlap between adjacent chunks")
	fs.IntVar(&o.RAG.TopK, "rag.top-k", o.RAG.TopK,
		"Default number of chunks to retrieve")
	fs.StringVar(&o.RAG.StoreBackend, "rag.store-backend", o.RAG.StoreBackend,
		"Vector store backend (memory|chroma|milvus)")
}

func (o *Options) addCacheFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Cache.QueryEnabled, "cache.query-enabled", o.Cache.QueryEnabled,
		"Enable query result caching (requires Redis)")
	fs.DurationVar(&o.Cache.QueryTTL, "cache.query-ttl", o.Cache.QueryTTL,
		"Query cache TTL")
	fs.BoolVar(&o.Cache.EmbeddingEnabled, "cache.embedding-enabled", o.Cache.EmbeddingEnabled,
		"Enable embedding caching (requires Redis)")
	fs.DurationVar(&o.Cache.EmbeddingTTL, "cache.embedding-ttl", o.Cache.EmbeddingTTL,
		"Embedding cache TTL")
}

// Complete 补全依赖其他配置的默认值。
func (o *Options) Complete() error {
	if o.Embedding.OpenAIAPIKey == "" {
		o.Embedding.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	// 降级链必须以离线确定性供应商收尾，保证外部供应商全部不可用时
	// 摄入与检索仍能完成。配置未显式包含时自动追加。
	hasHash := false
	for _, name := range o.Embedding.Providers {
		if name == hashembed.ProviderName {
			hasHash = true
			break
		}
	}
	if !hasHash && len(o.Embedding.Providers) > 0 {
		o.Embedding.Providers = append(o.Embedding.Providers, hashembed.ProviderName)
	}
	return nil
}

// knownProviders 可进入降级链的供应商名称。
var knownProviders = map[string]bool{
	"ollama": true,
	"openai": true,
	"hash":   true,
}

// Validate 校验配置合法性。
func (o *Options) Validate() error {
	var errs []string

	if err := o.HTTP.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := o.Redis.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch o.RAG.StoreBackend {
	case store.BackendMemory:
	case store.BackendChroma:
		for _, err := range o.Chroma.Validate() {
			errs = append(errs, err.Error())
		}
	case store.BackendMilvus:
		for _, err := range o.Milvus.Validate() {
			errs = append(errs, err.Error())
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store backend: %s", o.RAG.StoreBackend))
	}

	if len(o.Embedding.Providers) == 0 {
		errs = append(errs, "at least one embedding provider is required")
	}
	for _, name := range o.Embedding.Providers {
		if !knownProviders[name] {
			errs = append(errs, fmt.Sprintf("unknown embedding provider: %s", name))
		}
	}
	if o.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding dimension must be positive")
	}

	if o.RAG.ChunkSize <= 0 {
		errs = append(errs, "chunk size must be positive")
	}
	if o.RAG.ChunkOverlap < 0 || o.RAG.ChunkOverlap >= o.RAG.ChunkSize {
		errs = append(errs, "chunk overlap must be non-negative and smaller than chunk size")
	}
	if o.RAG.TopK <= 0 {
		errs = append(errs, "top-k must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %s", strings.Join(errs, "; "))
	}
	return nil
}
