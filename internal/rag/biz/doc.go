// Package biz 实现检索服务的业务逻辑层。
//
// Ingestor 负责文档切块、向量化与入库；Retriever 负责查询向量化与
// 相似度检索；RAGService 组合两者并叠加查询缓存与指标收集，
// 对外提供统一的 Service 接口。
package biz
