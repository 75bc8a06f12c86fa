// Package store 提供检索服务的向量存储层。
//
// 该包定义了以项目为作用域的向量存储接口抽象和具体实现，
// 支持文档块的存储、相似度检索、统计与删除。
package store
