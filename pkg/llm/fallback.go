package llm

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
)

// attemptResult 单个供应商尝试的结果。
type attemptResult struct {
	provider   string
	embeddings [][]float64
	err        error
}

func (r attemptResult) ok() bool { return r.err == nil }

// FallbackChain 按固定顺序尝试多个 Embedding 供应商。
// 链在构造时固定（进程启动时配置一次），逐个尝试直到某个供应商成功；
// 最后一个供应商应当是离线确定性供应商，保证嵌入生成永不硬失败。
type FallbackChain struct {
	providers []EmbeddingProvider
	// onFallback 在发生降级时回调（用于指标统计），可为 nil。
	onFallback func(from, to string)
}

// NewFallbackChain 创建供应商降级链。至少需要一个供应商。
func NewFallbackChain(providers ...EmbeddingProvider) (*FallbackChain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("fallback chain requires at least one provider")
	}
	return &FallbackChain{providers: providers}, nil
}

// WithFallbackHook 设置降级回调。
func (c *FallbackChain) WithFallbackHook(hook func(from, to string)) *FallbackChain {
	c.onFallback = hook
	return c
}

// Name 返回链首供应商的名称。
func (c *FallbackChain) Name() string {
	return c.providers[0].Name()
}

// Embed 为多个文本生成向量嵌入，失败时按链序降级。
func (c *FallbackChain) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var last attemptResult
	for i, provider := range c.providers {
		embeddings, err := provider.Embed(ctx, texts)
		last = attemptResult{provider: provider.Name(), embeddings: embeddings, err: err}
		if last.ok() {
			return last.embeddings, nil
		}

		if i+1 < len(c.providers) {
			next := c.providers[i+1]
			logger.Warnw("embedding provider failed, falling back",
				"provider", provider.Name(),
				"next", next.Name(),
				"error", err.Error(),
			)
			if c.onFallback != nil {
				c.onFallback(provider.Name(), next.Name())
			}
		}
	}

	return nil, fmt.Errorf("all embedding providers failed, last (%s): %w", last.provider, last.err)
}

// EmbedSingle 为单个文本生成向量嵌入，失败时按链序降级。
func (c *FallbackChain) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("provider returned no embedding")
	}
	return embeddings[0], nil
}

// 确保 FallbackChain 实现了 EmbeddingProvider 接口。
var _ EmbeddingProvider = (*FallbackChain)(nil)
