package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itissonu/genaiquery/internal/rag/biz"
	"github.com/itissonu/genaiquery/internal/rag/handler"
	"github.com/itissonu/genaiquery/internal/rag/metrics"
	"github.com/itissonu/genaiquery/internal/rag/router"
	"github.com/itissonu/genaiquery/internal/rag/store"
)

// APIResponse 标准 API 响应结构
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// stubEmbedder 返回固定维度向量的嵌入桩，文本越长首维越大。
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embeddings[i] = []float64{float64(len(text)), 1, 0}
	}
	return embeddings, nil
}

func (e stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	embeddings, _ := e.Embed(ctx, []string{text})
	return embeddings[0], nil
}

func (stubEmbedder) Name() string { return "stub" }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := metrics.New()
	svc := biz.NewRAGService(store.NewMemoryStore(), stubEmbedder{}, nil, m, nil)

	engine := gin.New()
	router.Register(engine, handler.NewRAGHandler(svc, m))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestIngestAndQuery(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/v1/rag/projects/p1/ingest",
		map[string]string{"content": "users table has id, name and email columns"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)

	w = doJSON(t, engine, http.MethodPost, "/v1/rag/projects/p1/query",
		map[string]any{"query": "users", "topK": 3})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var result struct {
		HasContext bool `json:"hasContext"`
		Results    []struct {
			Content string `json:"content"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.HasContext)
	require.NotEmpty(t, result.Results)
	assert.Contains(t, result.Results[0].Content, "users")
}

func TestIngestMissingContent(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/v1/rag/projects/p1/ingest", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestWhitespaceOnly(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/v1/rag/projects/p1/ingest",
		map[string]string{"content": "   \n\t  "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no chunks")
}

func TestQueryUnknownProject(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/v1/rag/projects/missing/query",
		map[string]any{"query": "anything"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var result struct {
		HasContext bool `json:"hasContext"`
		Degraded   bool `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.HasContext)
	assert.False(t, result.Degraded)
}

func TestProjectLifecycle(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/v1/rag/projects/p1/ingest",
		map[string]string{"content": "orders table has id and total"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/v1/rag/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "p1")

	w = doJSON(t, engine, http.MethodGet, "/v1/rag/projects/p1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var stats struct {
		ChunkCount int `json:"chunkCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Greater(t, stats.ChunkCount, 0)

	w = doJSON(t, engine, http.MethodDelete, "/v1/rag/projects/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/v1/rag/projects/p1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Zero(t, stats.ChunkCount)
}

func TestHealthz(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t)

	w := doJSON(t, engine, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "genaiquery_rag_queries_total"))
}
