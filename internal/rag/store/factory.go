package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/itissonu/genaiquery/pkg/component/chroma"
	"github.com/itissonu/genaiquery/pkg/component/milvus"
	chromaopts "github.com/itissonu/genaiquery/pkg/options/chroma"
	milvusopts "github.com/itissonu/genaiquery/pkg/options/milvus"
)

// 支持的存储后端。
const (
	BackendMemory = "memory"
	BackendChroma = "chroma"
	BackendMilvus = "milvus"
)

// Config 存储工厂配置。
type Config struct {
	// Backend 后端类型（memory、chroma、milvus）。
	Backend string
	// EmbeddingDim 向量维度，Milvus 建集合时需要。
	EmbeddingDim int
	// Chroma Chroma 客户端配置，Backend 为 chroma 时使用。
	Chroma *chromaopts.Options
	// Milvus Milvus 客户端配置，Backend 为 milvus 时使用。
	Milvus *milvusopts.Options
}

// New 按配置创建向量存储。
//
// 外部后端初始化失败不会让进程退出：记录告警后整体降级为内存后端，
// 服务以无持久化模式继续运行。未知后端类型返回错误。
func New(ctx context.Context, cfg *Config) (VectorStore, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil

	case BackendChroma:
		s, err := newChromaStore(ctx, cfg)
		if err != nil {
			logger.Warnw("chroma store unavailable, degrading to memory store",
				"error", err.Error(),
			)
			return NewMemoryStore(), nil
		}
		return s, nil

	case BackendMilvus:
		s, err := newMilvusStore(ctx, cfg)
		if err != nil {
			logger.Warnw("milvus store unavailable, degrading to memory store",
				"error", err.Error(),
			)
			return NewMemoryStore(), nil
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown vector store backend: %q", cfg.Backend)
	}
}

func newChromaStore(ctx context.Context, cfg *Config) (*ChromaStore, error) {
	opts := cfg.Chroma
	if opts == nil {
		opts = chromaopts.NewOptions()
	}

	client, err := chroma.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewChromaStore(ctx, client, opts.Collection)
}

func newMilvusStore(ctx context.Context, cfg *Config) (*MilvusStore, error) {
	opts := cfg.Milvus
	if opts == nil {
		opts = milvusopts.NewOptions()
	}

	client, err := milvus.New(opts)
	if err != nil {
		return nil, err
	}

	s, err := NewMilvusStore(ctx, client, "project_chunks", cfg.EmbeddingDim)
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return s, nil
}
