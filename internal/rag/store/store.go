package store

import (
	"context"
	"fmt"
)

// Document 表示存入向量库的单个文档块。
type Document struct {
	// ID 文档块 ID，格式为 {projectID}_{chunkIndex}_{timestamp}。
	ID string
	// ProjectID 所属项目 ID。
	ProjectID string
	// Content 文档块文本内容。
	Content string
	// ChunkIndex 文档块在原文档中的序号。
	ChunkIndex int
	// Embedding 嵌入向量。
	Embedding []float64
	// CreatedAt 存入时间（Unix 毫秒）。
	CreatedAt int64
}

// SearchResult 表示一条检索结果。
type SearchResult struct {
	Document
	// Similarity 与查询向量的余弦相似度。
	Similarity float64
}

// ProjectStats 项目级统计信息。
type ProjectStats struct {
	ProjectID  string `json:"projectId"`
	ChunkCount int    `json:"chunkCount"`
	// LastUpdated 最近一次摄入时间（Unix 毫秒），无数据或后端不支持时为 0。
	LastUpdated int64 `json:"lastUpdated,omitempty"`
}

// VectorStore 定义以项目为作用域的向量存储接口。
//
// 同一项目重新摄入时旧数据整体替换；不同项目的数据相互隔离。
type VectorStore interface {
	// Store 存入一个项目的全部文档块，替换该项目已有的数据。
	Store(ctx context.Context, projectID string, docs []Document) error

	// Search 在项目范围内按余弦相似度检索 topK 个最相似的文档块，
	// 结果按相似度降序排列。未知项目返回空结果而非错误。
	Search(ctx context.Context, projectID string, embedding []float64, topK int) ([]SearchResult, error)

	// Stats 返回项目的统计信息。
	Stats(ctx context.Context, projectID string) (*ProjectStats, error)

	// ListProjects 列出所有已摄入数据的项目及其文档块数量。
	ListProjects(ctx context.Context) ([]ProjectStats, error)

	// DeleteProject 删除项目的全部数据。删除不存在的项目不报错。
	DeleteProject(ctx context.Context, projectID string) error

	// HealthCheck 检查存储后端是否可用。
	HealthCheck(ctx context.Context) error

	// Name 返回后端名称标识。
	Name() string

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// NewDocumentID 生成文档块 ID。
func NewDocumentID(projectID string, chunkIndex int, timestamp int64) string {
	return fmt.Sprintf("%s_%d_%d", projectID, chunkIndex, timestamp)
}
