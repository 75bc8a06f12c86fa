// Package hashembed 提供离线确定性 Embedding 供应商。
// 不依赖任何网络服务，相同文本在任意进程中产生相同的单位向量，
// 作为主/备供应商均不可用时的最终降级路径。
package hashembed

import (
	"context"
	"math"

	"github.com/itissonu/genaiquery/internal/pkg/rag/vecmath"
	"github.com/itissonu/genaiquery/pkg/llm"
)

// ProviderName 供应商名称标识符。
const ProviderName = "hash"

// DefaultDimension 默认向量维度（与 nomic-embed-text 对齐，便于混用存量数据）。
const DefaultDimension = 768

// dimensionStride 各维度种子间隔，拉开相邻维度的采样点。
const dimensionStride = 1000

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider 确定性 Embedding 供应商实现。
type Provider struct {
	dimension int
}

// NewProvider 从配置 map 创建供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	dim := DefaultDimension
	if v, ok := configMap["embedding_dim"].(int); ok && v > 0 {
		dim = v
	}
	return New(dim), nil
}

// New 创建指定维度的确定性供应商。
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Provider{dimension: dimension}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embeddings[i] = p.embed(text)
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(_ context.Context, text string) ([]float64, error) {
	return p.embed(text), nil
}

// embed 从文本哈希派生伪随机单位向量。
// 哈希按 hash = hash*31 + code 折叠到 32 位有符号整数；每个维度取
// sin(hash + i*K) + cos(0.7*(hash + i*K))，最后做 L2 归一化。
func (p *Provider) embed(text string) []float64 {
	var hash int32
	for _, r := range text {
		hash = hash*31 + int32(r)
	}

	vector := make([]float64, p.dimension)
	for i := 0; i < p.dimension; i++ {
		seed := float64(hash) + float64(i*dimensionStride)
		vector[i] = math.Sin(seed) + math.Cos(0.7*seed)
	}

	return vecmath.Normalize(vector)
}

// 确保 Provider 实现了 EmbeddingProvider 接口。
var _ llm.EmbeddingProvider = (*Provider)(nil)
