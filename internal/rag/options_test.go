package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	opts := NewOptions()

	require.NoError(t, opts.Complete())
	assert.NoError(t, opts.Validate())
	assert.Equal(t, []string{"ollama", "hash"}, opts.Embedding.Providers)
	assert.Equal(t, "memory", opts.RAG.StoreBackend)
}

func TestOptionsCompleteAppendsDeterministicProvider(t *testing.T) {
	opts := NewOptions()
	opts.Embedding.Providers = []string{"ollama", "openai"}

	require.NoError(t, opts.Complete())
	assert.Equal(t, []string{"ollama", "openai", "hash"}, opts.Embedding.Providers)

	// 已包含时不重复追加
	opts = NewOptions()
	opts.Embedding.Providers = []string{"hash", "ollama"}
	require.NoError(t, opts.Complete())
	assert.Equal(t, []string{"hash", "ollama"}, opts.Embedding.Providers)

	// 空链由 Validate 拒绝，不在补全阶段注入
	opts = NewOptions()
	opts.Embedding.Providers = nil
	require.NoError(t, opts.Complete())
	assert.Empty(t, opts.Embedding.Providers)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{
			name:    "unknown store backend",
			mutate:  func(o *Options) { o.RAG.StoreBackend = "pinecone" },
			wantErr: "unknown store backend",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(o *Options) { o.Embedding.Providers = []string{"cohere"} },
			wantErr: "unknown embedding provider",
		},
		{
			name:    "empty provider chain",
			mutate:  func(o *Options) { o.Embedding.Providers = nil },
			wantErr: "at least one embedding provider",
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(o *Options) { o.RAG.ChunkSize = 50; o.RAG.ChunkOverlap = 50 },
			wantErr: "chunk overlap",
		},
		{
			name:    "non-positive top-k",
			mutate:  func(o *Options) { o.RAG.TopK = 0 },
			wantErr: "top-k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions()
			tt.mutate(opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEmbeddingToConfigMap(t *testing.T) {
	opts := NewOptions()
	opts.Embedding.OpenAIAPIKey = "sk-test"

	ollama := opts.Embedding.ToConfigMap("ollama")
	assert.Equal(t, "http://localhost:11434", ollama["base_url"])
	assert.Equal(t, "nomic-embed-text", ollama["embed_model"])

	openai := opts.Embedding.ToConfigMap("openai")
	assert.Equal(t, "sk-test", openai["api_key"])

	hash := opts.Embedding.ToConfigMap("hash")
	assert.Equal(t, 768, hash["embedding_dim"])
}
