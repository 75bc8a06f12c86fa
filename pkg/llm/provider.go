// Package llm 提供统一的 Embedding 供应商抽象层。
// 支持本地推理服务（Ollama）、托管 API（OpenAI）和离线确定性供应商。
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrModelUnavailable 表示配置的模型未出现在推理服务的模型列表中。
var ErrModelUnavailable = errors.New("embedding model unavailable")

// ErrMissingAPIKey 表示托管 API 供应商缺少凭证，属于配置错误。
var ErrMissingAPIKey = errors.New("api key is required")

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，结果与输入一一对应。
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float64, error)

	// Name 返回供应商名称。
	Name() string
}

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// registry 供应商注册表。
var registry = &providerRegistry{
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	embeddingProviders map[string]EmbeddingProviderFactory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.embeddingProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}

	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.embeddingProviders))
	for name := range registry.embeddingProviders {
		names = append(names, name)
	}
	return names
}
