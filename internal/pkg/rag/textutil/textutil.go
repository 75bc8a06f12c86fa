// Package textutil 提供 RAG 相关的文本处理工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkSize 默认文本块大小（Unicode 字符数）。
	DefaultChunkSize = 500

	// DefaultChunkOverlap 默认块重叠大小。
	DefaultChunkOverlap = 50

	// boundaryRatio 边界回退下限：仅当空白字符不早于窗口的 70% 处时才回退，
	// 避免块被过度缩短。
	boundaryRatio = 0.7
)

// SplitIntoChunks 将文本分割成重叠的块。
// chunkSize 是每个块的大小（Unicode 字符数），overlap 是块之间的重叠大小。
//
// 每个窗口从当前游标开始取 chunkSize 个字符；若窗口右边界落在文本内部，
// 则回退到最近的前置空白字符处断块，但回退不会早于窗口的 70% 处。
// 每个块去除首尾空白，空块被丢弃。只要 overlap < chunkSize，游标在每轮
// 迭代中严格前进，循环必然终止。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= chunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// 回退到最近的前置空白字符，但不早于窗口的 70% 处
			limit := start + int(float64(chunkSize)*boundaryRatio)
			for i := end; i > limit; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			// 防止极端重叠配置下游标停滞
			next = start + 1
		}
		start = next
	}

	return chunks
}

// HashString 计算字符串的 MD5 哈希值。
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
