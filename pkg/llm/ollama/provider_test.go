package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itissonu/genaiquery/pkg/llm"
	"github.com/itissonu/genaiquery/pkg/llm/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOllama 启动模拟 Ollama 服务。
// models 为 /api/tags 返回的模型列表，embedCalls 统计嵌入请求次数。
func newFakeOllama(t *testing.T, models []string, embedCalls *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		type model struct {
			Name string `json:"name"`
		}
		resp := struct {
			Models []model `json:"models"`
		}{}
		for _, name := range models {
			resp.Models = append(resp.Models, model{Name: name})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if embedCalls != nil {
			embedCalls.Add(1)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Model)

		// 以文本长度构造可区分的向量
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{float64(len(req.Prompt)), 1, 0},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(server *httptest.Server, model string) *ollama.Provider {
	cfg := ollama.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.EmbedModel = model
	cfg.RequestDelay = time.Millisecond
	return ollama.NewProviderWithConfig(cfg)
}

func TestEmbedSingle(t *testing.T) {
	server := newFakeOllama(t, []string{"nomic-embed-text:latest"}, nil)
	provider := newTestProvider(server, "nomic-embed-text")

	vector, err := provider.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 0}, vector)
}

func TestEmbedBatchSequential(t *testing.T) {
	var calls atomic.Int64
	server := newFakeOllama(t, []string{"nomic-embed-text"}, &calls)
	provider := newTestProvider(server, "nomic-embed-text")

	embeddings, err := provider.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, embeddings, 3)

	// 每条文本一次请求，顺序与输入一致
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, []float64{1, 1, 0}, embeddings[0])
	assert.Equal(t, []float64{2, 1, 0}, embeddings[1])
	assert.Equal(t, []float64{3, 1, 0}, embeddings[2])
}

func TestEmbedModelNotInstalled(t *testing.T) {
	server := newFakeOllama(t, []string{"llama3:8b"}, nil)
	provider := newTestProvider(server, "nomic-embed-text")

	_, err := provider.EmbedSingle(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrModelUnavailable)
	assert.Contains(t, err.Error(), "ollama pull nomic-embed-text")
}

func TestEmbedModelPrefixMatch(t *testing.T) {
	server := newFakeOllama(t, []string{"nomic-embed-text:v1.5"}, nil)
	provider := newTestProvider(server, "nomic-embed-text")

	_, err := provider.EmbedSingle(context.Background(), "hello")
	assert.NoError(t, err)
}

func TestEmbedServiceDown(t *testing.T) {
	server := newFakeOllama(t, []string{"nomic-embed-text"}, nil)
	provider := newTestProvider(server, "nomic-embed-text")
	server.Close()

	_, err := provider.EmbedSingle(context.Background(), "hello")
	assert.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	server := newFakeOllama(t, []string{"nomic-embed-text"}, nil)
	provider := newTestProvider(server, "nomic-embed-text")

	embeddings, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestPing(t *testing.T) {
	server := newFakeOllama(t, nil, nil)
	provider := newTestProvider(server, "nomic-embed-text")

	assert.NoError(t, provider.Ping(context.Background()))
}
