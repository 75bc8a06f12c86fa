// Package metrics 提供检索服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 检索服务业务指标。
// 通过依赖注入传递，不使用全局单例，便于测试隔离。
type Metrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesDegraded    uint64 // 降级为空上下文的查询次数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// Embedding 指标
	embedCallsTotal uint64 // Embedding 调用总次数
	embedErrors     uint64 // Embedding 调用错误次数
	embedFallbacks  uint64 // 供应商降级次数

	// 摄入指标
	ingestsTotal   uint64 // 摄入操作次数
	chunksIngested uint64 // 已摄入分块数
	ingestErrors   uint64 // 摄入错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// New 创建指标收集器实例。
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordQuery 记录查询。
func (m *Metrics) RecordQuery(cacheHit bool) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordQueryDegraded 记录降级为空上下文的查询。
func (m *Metrics) RecordQueryDegraded() {
	atomic.AddUint64(&m.queriesDegraded, 1)
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordEmbedding 记录 Embedding 调用。
func (m *Metrics) RecordEmbedding(err error) {
	atomic.AddUint64(&m.embedCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.embedErrors, 1)
	}
}

// RecordEmbeddingFallback 记录供应商降级。
func (m *Metrics) RecordEmbeddingFallback() {
	atomic.AddUint64(&m.embedFallbacks, 1)
}

// RecordIngest 记录摄入操作。
func (m *Metrics) RecordIngest(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.ingestsTotal, 1)
	atomic.AddUint64(&m.chunksIngested, uint64(chunks))
}

// Export 导出 Prometheus 文本格式指标。
func (m *Metrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}
	gauge := func(name, help string, value float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %.4f\n\n", prefix, name, value))
	}

	counter("queries_total", "Total number of retrieval queries.", atomic.LoadUint64(&m.queriesTotal))
	counter("queries_cache_hits_total", "Number of query cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	counter("queries_cache_misses_total", "Number of query cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	counter("queries_degraded_total", "Number of queries degraded to empty context.", atomic.LoadUint64(&m.queriesDegraded))

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	gauge("cache_hit_rate", "Query cache hit rate (0-1).", cacheHitRate)

	counter("retrieval_total", "Total number of vector searches.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_errors_total", "Number of vector search errors.", atomic.LoadUint64(&m.retrievalErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	m.durationMu.Unlock()
	gauge("retrieval_duration_seconds_total", "Total vector search duration.", retrievalDuration)

	counter("embed_calls_total", "Total number of embedding calls.", atomic.LoadUint64(&m.embedCallsTotal))
	counter("embed_errors_total", "Number of embedding call errors.", atomic.LoadUint64(&m.embedErrors))
	counter("embed_fallbacks_total", "Number of embedding provider fallbacks.", atomic.LoadUint64(&m.embedFallbacks))

	counter("ingests_total", "Total number of ingest operations.", atomic.LoadUint64(&m.ingestsTotal))
	counter("chunks_ingested_total", "Total chunks ingested.", atomic.LoadUint64(&m.chunksIngested))
	counter("ingest_errors_total", "Number of ingest errors.", atomic.LoadUint64(&m.ingestErrors))

	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	return map[string]any{
		"queries": map[string]any{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"degraded":       atomic.LoadUint64(&m.queriesDegraded),
		},
		"retrieval": map[string]any{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"embedding": map[string]any{
			"calls_total": atomic.LoadUint64(&m.embedCallsTotal),
			"errors":      atomic.LoadUint64(&m.embedErrors),
			"fallbacks":   atomic.LoadUint64(&m.embedFallbacks),
		},
		"ingestion": map[string]any{
			"ingests_total":   atomic.LoadUint64(&m.ingestsTotal),
			"chunks_ingested": atomic.LoadUint64(&m.chunksIngested),
			"errors":          atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
