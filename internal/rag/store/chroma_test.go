package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itissonu/genaiquery/pkg/component/chroma"
	chromaopts "github.com/itissonu/genaiquery/pkg/options/chroma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChromaState 记录 fake 服务收到的请求。
type fakeChromaState struct {
	deleteCalls []map[string]any
	addCalls    []map[string]any
	queryResp   map[string]any
}

func newFakeChromaServer(t *testing.T, state *fakeChromaState) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"nanosecond heartbeat": 1})
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "c1", "name": req["name"]})
	})
	mux.HandleFunc("/api/v1/collections/c1/delete", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		state.deleteCalls = append(state.deleteCalls, req)
		_ = json.NewEncoder(w).Encode([]string{})
	})
	mux.HandleFunc("/api/v1/collections/c1/add", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		state.addCalls = append(state.addCalls, req)
		_ = json.NewEncoder(w).Encode(true)
	})
	mux.HandleFunc("/api/v1/collections/c1/query", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(state.queryResp)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newChromaTestStore(t *testing.T, state *fakeChromaState) *ChromaStore {
	t.Helper()
	server := newFakeChromaServer(t, state)

	opts := chromaopts.NewOptions()
	opts.URL = server.URL

	client, err := chroma.New(context.Background(), opts)
	require.NoError(t, err)

	s, err := NewChromaStore(context.Background(), client, opts.Collection)
	require.NoError(t, err)
	return s
}

func TestChromaStoreClearsBeforeAdd(t *testing.T) {
	state := &fakeChromaState{}
	s := newChromaTestStore(t, state)

	err := s.Store(context.Background(), "p1", []Document{
		newDoc("p1", 0, "hello", []float64{1, 0}),
	})
	require.NoError(t, err)

	// 先按 projectId 清理旧数据，再写入新数据
	require.Len(t, state.deleteCalls, 1)
	require.Len(t, state.addCalls, 1)
	assert.Equal(t, map[string]any{"projectId": "p1"}, state.deleteCalls[0]["where"])
}

func TestChromaStoreSimilarityFromDistance(t *testing.T) {
	state := &fakeChromaState{
		queryResp: map[string]any{
			"ids":       [][]string{{"p1_0_1", "p1_1_1"}},
			"documents": [][]string{{"close", "far"}},
			"metadatas": [][]map[string]any{{
				{"projectId": "p1", "chunkIndex": 0},
				{"projectId": "p1", "chunkIndex": 1},
			}},
			"distances": [][]float64{{0.2, 0.9}},
		},
	}
	s := newChromaTestStore(t, state)

	results, err := s.Search(context.Background(), "p1", []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.InDelta(t, 0.8, results[0].Similarity, 1e-9)
	assert.InDelta(t, 0.1, results[1].Similarity, 1e-9)
	assert.Equal(t, "close", results[0].Content)
	assert.Equal(t, 1, results[1].ChunkIndex)
}

func TestChromaStoreMissingDistance(t *testing.T) {
	state := &fakeChromaState{
		queryResp: map[string]any{
			"ids":       [][]string{{"p1_0_1"}},
			"documents": [][]string{{"no distance"}},
			"metadatas": [][]map[string]any{{{"projectId": "p1", "chunkIndex": 0}}},
			"distances": [][]float64{},
		},
	}
	s := newChromaTestStore(t, state)

	results, err := s.Search(context.Background(), "p1", []float64{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 距离缺失时条目保留，相似度取最大值
	assert.Equal(t, 1.0, results[0].Similarity)
}

func TestChromaStoreEmptyResult(t *testing.T) {
	state := &fakeChromaState{
		queryResp: map[string]any{
			"ids":       [][]string{},
			"documents": [][]string{},
			"metadatas": [][]map[string]any{},
			"distances": [][]float64{},
		},
	}
	s := newChromaTestStore(t, state)

	results, err := s.Search(context.Background(), "p1", []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
