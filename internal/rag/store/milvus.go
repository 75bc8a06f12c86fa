package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/itissonu/genaiquery/internal/pkg/rag/vecmath"
	"github.com/itissonu/genaiquery/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
//
// 全部项目共用一个集合，通过 project_id 字段过滤实现项目隔离。
// 向量索引使用 COSINE 度量，搜索分数即余弦相似度。
type MilvusStore struct {
	client     *milvus.Client
	collection string
}

// NewMilvusStore 创建 Milvus 存储实例，集合不存在时自动创建。
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusStore, error) {
	if err := client.EnsureCollection(ctx, collection, dimension); err != nil {
		return nil, fmt.Errorf("failed to initialize milvus collection: %w", err)
	}

	return &MilvusStore{
		client:     client,
		collection: collection,
	}, nil
}

// projectFilter 构造项目过滤表达式。项目 ID 来自 URL 路径段，
// 转义单引号防止表达式注入。
func projectFilter(projectID string) string {
	escaped := strings.ReplaceAll(projectID, `'`, `\'`)
	return fmt.Sprintf("project_id == '%s'", escaped)
}

// Store 存入项目的全部文档块，先删除该项目旧数据再写入。
func (s *MilvusStore) Store(ctx context.Context, projectID string, docs []Document) error {
	if err := s.client.DeleteByFilter(ctx, s.collection, projectFilter(projectID)); err != nil {
		return fmt.Errorf("failed to clear previous project data: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	rows := make([]milvus.ChunkRow, len(docs))
	for i, doc := range docs {
		rows[i] = milvus.ChunkRow{
			ID:         doc.ID,
			Embedding:  vecmath.ToFloat32(doc.Embedding),
			ProjectID:  doc.ProjectID,
			Content:    doc.Content,
			ChunkIndex: int64(doc.ChunkIndex),
			CreatedAt:  doc.CreatedAt,
		}
	}

	if err := s.client.Insert(ctx, s.collection, rows); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Search 在项目范围内检索 topK 个最相似的文档块。
func (s *MilvusStore) Search(ctx context.Context, projectID string, embedding []float64, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	outputFields := []string{"project_id", "content", "chunk_index", "created_at"}
	results, err := s.client.Search(ctx, s.collection, vecmath.ToFloat32(embedding), topK, projectFilter(projectID), outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		result := SearchResult{
			Document: Document{
				ID:        r.ID,
				ProjectID: projectID,
			},
			Similarity: float64(r.Score),
		}
		if v, ok := r.Metadata["content"].(string); ok {
			result.Content = v
		}
		if v, ok := r.Metadata["chunk_index"].(int64); ok {
			result.ChunkIndex = int(v)
		}
		if v, ok := r.Metadata["created_at"].(int64); ok {
			result.CreatedAt = v
		}
		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// Stats 返回项目的统计信息。
func (s *MilvusStore) Stats(ctx context.Context, projectID string) (*ProjectStats, error) {
	count, err := s.client.CountByFilter(ctx, s.collection, projectFilter(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to get project stats: %w", err)
	}

	stats := &ProjectStats{
		ProjectID:  projectID,
		ChunkCount: int(count),
	}
	if count == 0 {
		return stats, nil
	}

	createdAts, err := s.client.QueryInt64s(ctx, s.collection, projectFilter(projectID), "created_at", listProjectsScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get project stats: %w", err)
	}
	for _, createdAt := range createdAts {
		if createdAt > stats.LastUpdated {
			stats.LastUpdated = createdAt
		}
	}
	return stats, nil
}

// listProjectsScanLimit 限制项目列表与统计扫描的行数。
const listProjectsScanLimit = 16384

// ListProjects 列出所有已摄入数据的项目及其文档块数量。
// Milvus 不支持 distinct 查询，这里扫描 project_id 字段后在内存聚合；
// LastUpdated 需要逐项目扫描，列表接口不填充。
func (s *MilvusStore) ListProjects(ctx context.Context) ([]ProjectStats, error) {
	values, err := s.client.QueryStrings(ctx, s.collection, "", "project_id", listProjectsScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	counts := make(map[string]int)
	for _, projectID := range values {
		counts[projectID]++
	}

	projects := make([]ProjectStats, 0, len(counts))
	for projectID, count := range counts {
		projects = append(projects, ProjectStats{ProjectID: projectID, ChunkCount: count})
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ProjectID < projects[j].ProjectID
	})
	return projects, nil
}

// DeleteProject 删除项目的全部数据。
func (s *MilvusStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.client.DeleteByFilter(ctx, s.collection, projectFilter(projectID))
}

// HealthCheck 检查 Milvus 集合是否可查询。
func (s *MilvusStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.CountByFilter(ctx, s.collection, "")
	return err
}

// Name 返回后端名称。
func (s *MilvusStore) Name() string {
	return "milvus"
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
