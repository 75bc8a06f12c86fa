package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/itissonu/genaiquery/pkg/llm"
	"github.com/itissonu/genaiquery/pkg/llm/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOpenAI(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Model)

		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// 逆序返回，验证客户端按 index 还原顺序
		for i, text := range req.Input {
			data[len(req.Input)-1-i] = item{
				Embedding: []float64{float64(len(text)), 0, 1},
				Index:     i,
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, server *httptest.Server) *openai.Provider {
	t.Helper()
	cfg := openai.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "test-key"
	provider, err := openai.NewProviderWithConfig(cfg)
	require.NoError(t, err)
	return provider
}

func TestEmbedBatchSingleRequest(t *testing.T) {
	var calls atomic.Int64
	server := newFakeOpenAI(t, &calls)
	provider := newTestProvider(t, server)

	embeddings, err := provider.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, embeddings, 3)

	// 批量文本在单个请求中发送，且结果顺序与输入一致
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, []float64{1, 0, 1}, embeddings[0])
	assert.Equal(t, []float64{2, 0, 1}, embeddings[1])
	assert.Equal(t, []float64{3, 0, 1}, embeddings[2])
}

func TestEmbedSingle(t *testing.T) {
	server := newFakeOpenAI(t, nil)
	provider := newTestProvider(t, server)

	vector, err := provider.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0, 1}, vector)
}

func TestMissingAPIKey(t *testing.T) {
	_, err := openai.NewProvider(map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	provider := newTestProvider(t, server)
	_, err := provider.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbedEmptyInput(t *testing.T) {
	server := newFakeOpenAI(t, nil)
	provider := newTestProvider(t, server)

	embeddings, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}
