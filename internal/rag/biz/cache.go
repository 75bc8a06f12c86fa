package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultQueryCacheConfig 返回默认配置。
func DefaultQueryCacheConfig() *QueryCacheConfig {
	return &QueryCacheConfig{
		Enabled:   false,
		TTL:       time.Hour,
		KeyPrefix: "rag:query:",
	}
}

// QueryCache 检索结果缓存。
// Redis 不可用或未启用时所有操作直接跳过，不影响检索链路。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = DefaultQueryCacheConfig()
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// generateCacheKey 基于项目、查询与 topK 生成缓存键（SHA256 哈希）。
func (c *QueryCache) generateCacheKey(projectID, query string, topK int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", projectID, query, topK)))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 从缓存获取检索结果。未命中或缓存不可用时返回 nil。
func (c *QueryCache) Get(ctx context.Context, projectID, query string, topK int) *RetrievalResult {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	cacheKey := c.generateCacheKey(projectID, query, topK)
	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from query cache", "error", err.Error(), "key", cacheKey)
		}
		return nil
	}

	var result RetrievalResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached result, deleting", "error", err.Error(), "key", cacheKey)
		_ = c.redis.Del(ctx, cacheKey).Err()
		return nil
	}

	logger.Debugw("query cache hit", "project_id", projectID, "key", cacheKey)
	return &result
}

// Set 将检索结果写入缓存，失败只记录日志。
func (c *QueryCache) Set(ctx context.Context, projectID, query string, topK int, result *RetrievalResult) {
	if !c.config.Enabled || c.redis == nil || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal result for caching", "error", err.Error())
		return
	}

	cacheKey := c.generateCacheKey(projectID, query, topK)
	if err := c.redis.Set(ctx, cacheKey, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache query result", "error", err.Error(), "key", cacheKey)
	}
}

// InvalidateProject 清除项目相关的全部缓存。
// 键按内容哈希无法按项目定位，这里按前缀整体扫描后比对是不可行的，
// 因此采用保守策略：项目数据变更后整体清空查询缓存。
func (c *QueryCache) InvalidateProject(ctx context.Context, projectID string) {
	if !c.config.Enabled || c.redis == nil {
		return
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during query cache invalidation", "error", err.Error())
		return
	}

	logger.Debugw("query cache invalidated", "project_id", projectID, "deleted", deleted)
}
