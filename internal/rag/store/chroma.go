package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/logger"

	"github.com/itissonu/genaiquery/pkg/component/chroma"
)

// ChromaStore 实现基于 Chroma 向量数据库的存储。
//
// 全部项目共用一个集合，通过 projectId 元数据过滤实现项目隔离。
// Chroma 返回的是距离，相似度按 similarity = 1 - distance 换算。
type ChromaStore struct {
	client       *chroma.Client
	collectionID string
}

// NewChromaStore 创建 Chroma 存储实例，集合不存在时自动创建。
func NewChromaStore(ctx context.Context, client *chroma.Client, collection string) (*ChromaStore, error) {
	coll, err := client.GetOrCreateCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chroma collection: %w", err)
	}

	return &ChromaStore{
		client:       client,
		collectionID: coll.ID,
	}, nil
}

// Store 存入项目的全部文档块，先删除该项目旧数据再写入。
func (s *ChromaStore) Store(ctx context.Context, projectID string, docs []Document) error {
	// 重新摄入时整体替换旧数据
	if err := s.client.Delete(ctx, s.collectionID, map[string]any{"projectId": projectID}); err != nil {
		return fmt.Errorf("failed to clear previous project data: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	req := &chroma.AddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float64, len(docs)),
		Documents:  make([]string, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Documents[i] = doc.Content
		req.Metadatas[i] = map[string]any{
			"projectId":  doc.ProjectID,
			"chunkIndex": doc.ChunkIndex,
			"createdAt":  doc.CreatedAt,
		}
	}

	return s.client.Add(ctx, s.collectionID, req)
}

// Search 在项目范围内检索 topK 个最相似的文档块。
func (s *ChromaStore) Search(ctx context.Context, projectID string, embedding []float64, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	resp, err := s.client.Query(ctx, s.collectionID, &chroma.QueryRequest{
		QueryEmbeddings: [][]float64{embedding},
		NResults:        topK,
		Where:           map[string]any{"projectId": projectID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	if len(resp.Documents) == 0 {
		return []SearchResult{}, nil
	}

	documents := resp.Documents[0]
	results := make([]SearchResult, 0, len(documents))
	for i, content := range documents {
		result := SearchResult{
			Document: Document{
				ProjectID: projectID,
				Content:   content,
			},
			// 距离缺失时保留条目并给出最大相似度
			Similarity: 1.0,
		}
		if len(resp.IDs) > 0 && i < len(resp.IDs[0]) {
			result.ID = resp.IDs[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			result.Similarity = 1.0 - resp.Distances[0][i]
		} else {
			logger.Debugw("chroma result missing distance", "project_id", projectID, "index", i)
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta := resp.Metadatas[0][i]
			if v, ok := meta["chunkIndex"].(float64); ok {
				result.ChunkIndex = int(v)
			}
			if v, ok := meta["createdAt"].(float64); ok {
				result.CreatedAt = int64(v)
			}
		}
		results = append(results, result)
	}

	return results, nil
}

// Stats 返回项目的统计信息。
func (s *ChromaStore) Stats(ctx context.Context, projectID string) (*ProjectStats, error) {
	resp, err := s.client.Get(ctx, s.collectionID, &chroma.GetRequest{
		Where:   map[string]any{"projectId": projectID},
		Include: []string{"metadatas"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get project stats: %w", err)
	}

	stats := &ProjectStats{
		ProjectID:  projectID,
		ChunkCount: len(resp.IDs),
	}
	for _, meta := range resp.Metadatas {
		// JSON 数值统一解码为 float64
		if v, ok := meta["createdAt"].(float64); ok && int64(v) > stats.LastUpdated {
			stats.LastUpdated = int64(v)
		}
	}
	return stats, nil
}

// ListProjects 列出所有已摄入数据的项目及其文档块数量。
func (s *ChromaStore) ListProjects(ctx context.Context) ([]ProjectStats, error) {
	resp, err := s.client.Get(ctx, s.collectionID, &chroma.GetRequest{
		Include: []string{"metadatas"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	byProject := make(map[string]*ProjectStats)
	for _, meta := range resp.Metadatas {
		projectID, ok := meta["projectId"].(string)
		if !ok || projectID == "" {
			continue
		}
		stats, ok := byProject[projectID]
		if !ok {
			stats = &ProjectStats{ProjectID: projectID}
			byProject[projectID] = stats
		}
		stats.ChunkCount++
		if v, ok := meta["createdAt"].(float64); ok && int64(v) > stats.LastUpdated {
			stats.LastUpdated = int64(v)
		}
	}

	projects := make([]ProjectStats, 0, len(byProject))
	for _, stats := range byProject {
		projects = append(projects, *stats)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ProjectID < projects[j].ProjectID
	})
	return projects, nil
}

// DeleteProject 删除项目的全部数据。
func (s *ChromaStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.client.Delete(ctx, s.collectionID, map[string]any{"projectId": projectID})
}

// HealthCheck 检查 Chroma 服务是否可达。
func (s *ChromaStore) HealthCheck(ctx context.Context) error {
	return s.client.Heartbeat(ctx)
}

// Name 返回后端名称。
func (s *ChromaStore) Name() string {
	return "chroma"
}

// Close 关闭存储。Chroma 客户端基于 HTTP，无持久连接需要释放。
func (s *ChromaStore) Close(_ context.Context) error {
	return nil
}

// 确保 ChromaStore 实现了 VectorStore 接口。
var _ VectorStore = (*ChromaStore)(nil)
