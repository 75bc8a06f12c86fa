// Package ollama 提供基于本地 Ollama 推理服务的 Embedding 供应商实现。
//
// Ollama 的上下文窗口有限，批量嵌入时逐条发送请求并在请求间加入固定
// 间隔，避免压垮本地推理服务。
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itissonu/genaiquery/pkg/llm"
)

// ProviderName 供应商名称标识符。
const ProviderName = "ollama"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	// RequestDelay 批量嵌入时相邻请求之间的固定间隔。
	RequestDelay time.Duration `json:"request_delay" mapstructure:"request_delay"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:11434",
		EmbedModel:   "nomic-embed-text",
		Timeout:      30 * time.Second,
		RequestDelay: 100 * time.Millisecond,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client

	// 模型可用性只在首次使用前校验一次
	verifyOnce sync.Once
	verifyErr  error
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["request_delay"].(time.Duration); ok && v > 0 {
		cfg.RequestDelay = v
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// embedRequest Ollama embeddings API 请求体。
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse Ollama embeddings API 响应体。
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// tagsResponse Ollama 模型列表响应体。
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// verifyModel 校验配置的模型是否出现在服务的模型列表中。
// 接受精确匹配或前缀匹配（如配置 nomic-embed-text 匹配 nomic-embed-text:latest）。
func (p *Provider) verifyModel(ctx context.Context) error {
	p.verifyOnce.Do(func() {
		models, err := p.listModels(ctx)
		if err != nil {
			p.verifyErr = fmt.Errorf("failed to list ollama models: %w", err)
			return
		}

		for _, model := range models {
			if model == p.config.EmbedModel || strings.HasPrefix(model, p.config.EmbedModel) {
				return
			}
		}

		p.verifyErr = fmt.Errorf("%w: model %q not found, run `ollama pull %s` to install it",
			llm.ErrModelUnavailable, p.config.EmbedModel, p.config.EmbedModel)
	})
	return p.verifyErr
}

// listModels 列出服务端可用模型。
func (p *Provider) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

// Embed 为多个文本生成向量嵌入。
// 逐条发送请求（Ollama 上下文限制），保证第 i 条完成后才发第 i+1 条，
// 多条之间加入固定间隔。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := p.verifyModel(ctx); err != nil {
		return nil, err
	}

	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		if i > 0 && p.config.RequestDelay > 0 {
			select {
			case <-time.After(p.config.RequestDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		embedding, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		embeddings[i] = embedding
	}

	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	if err := p.verifyModel(ctx); err != nil {
		return nil, err
	}
	return p.embedOne(ctx, text)
}

// embedOne 发送单条嵌入请求。
func (p *Provider) embedOne(ctx context.Context, text string) ([]float64, error) {
	reqBody := embedRequest{
		Model:  p.config.EmbedModel,
		Prompt: text,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embedResp.Embedding, nil
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unavailable, status %d", resp.StatusCode)
	}

	return nil
}

// 确保 Provider 实现了 EmbeddingProvider 接口。
var _ llm.EmbeddingProvider = (*Provider)(nil)
