package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/itissonu/genaiquery/internal/pkg/rag/vecmath"
)

// MemoryStore 实现基于进程内存的向量存储。
//
// 文档按项目分桶，检索时对项目内全部向量做线性余弦相似度计算。
// 数据不持久化，进程退出即丢失；适合开发环境以及外部向量库不可用
// 时的兜底后端。
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string][]Document
}

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string][]Document),
	}
}

// Store 存入项目的全部文档块，整体替换该项目已有数据。
func (s *MemoryStore) Store(_ context.Context, projectID string, docs []Document) error {
	copied := make([]Document, len(docs))
	copy(copied, docs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = copied
	return nil
}

// Search 在项目范围内检索 topK 个最相似的文档块。
// 查询向量与存量向量维度不一致属于输入错误，直接返回错误而不是
// 静默跳过；未知项目返回空结果。
func (s *MemoryStore) Search(_ context.Context, projectID string, embedding []float64, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	docs := s.projects[projectID]
	s.mu.RUnlock()

	if len(docs) == 0 || topK <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		similarity, err := vecmath.CosineSimilarity(embedding, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		results = append(results, SearchResult{
			Document:   doc,
			Similarity: similarity,
		})
	}

	// 稳定排序，相似度相同时保持摄入顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Stats 返回项目的统计信息。
func (s *MemoryStore) Stats(_ context.Context, projectID string) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return projectStats(projectID, s.projects[projectID]), nil
}

// ListProjects 列出所有已摄入数据的项目及其文档块数量。
func (s *MemoryStore) ListProjects(_ context.Context) ([]ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]ProjectStats, 0, len(s.projects))
	for projectID, docs := range s.projects {
		if len(docs) > 0 {
			projects = append(projects, *projectStats(projectID, docs))
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ProjectID < projects[j].ProjectID
	})
	return projects, nil
}

func projectStats(projectID string, docs []Document) *ProjectStats {
	stats := &ProjectStats{
		ProjectID:  projectID,
		ChunkCount: len(docs),
	}
	for _, doc := range docs {
		if doc.CreatedAt > stats.LastUpdated {
			stats.LastUpdated = doc.CreatedAt
		}
	}
	return stats
}

// DeleteProject 删除项目的全部数据。
func (s *MemoryStore) DeleteProject(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, projectID)
	return nil
}

// HealthCheck 内存存储始终可用。
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// Name 返回后端名称。
func (s *MemoryStore) Name() string {
	return "memory"
}

// Close 关闭存储，释放全部数据。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[string][]Document)
	return nil
}

// 确保 MemoryStore 实现了 VectorStore 接口。
var _ VectorStore = (*MemoryStore)(nil)
