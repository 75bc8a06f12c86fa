package textutil_test

import (
	"strings"
	"testing"

	"github.com/itissonu/genaiquery/internal/pkg/rag/textutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		expected  []string
	}{
		{
			name:      "空文本",
			text:      "",
			chunkSize: 500,
			overlap:   50,
			expected:  nil,
		},
		{
			name:      "纯空白文本",
			text:      "   \n\t  ",
			chunkSize: 500,
			overlap:   50,
			expected:  nil,
		},
		{
			name:      "短于块大小",
			text:      "  hello world  ",
			chunkSize: 500,
			overlap:   50,
			expected:  []string{"hello world"},
		},
		{
			name:      "等于块大小",
			text:      strings.Repeat("a", 500),
			chunkSize: 500,
			overlap:   50,
			expected:  []string{strings.Repeat("a", 500)},
		},
		{
			name:      "非法块大小",
			text:      "hello",
			chunkSize: 0,
			overlap:   0,
			expected:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.SplitIntoChunks(tt.text, tt.chunkSize, tt.overlap)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSplitIntoChunksWhitespaceBoundary(t *testing.T) {
	// 400 个 a，一个空格，再 200 个 b：边界应回退到空格处（位于窗口 80% 处）
	text := strings.Repeat("a", 400) + " " + strings.Repeat("b", 200)
	chunks := textutil.SplitIntoChunks(text, 500, 50)

	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("a", 400), chunks[0])
}

func TestSplitIntoChunksHardBoundary(t *testing.T) {
	// 空格位于窗口 40% 处，早于 70% 下限：保持硬边界，不回退
	text := strings.Repeat("a", 200) + " " + strings.Repeat("b", 500)
	chunks := textutil.SplitIntoChunks(text, 500, 50)

	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 500)
}

func TestSplitIntoChunksCoverage(t *testing.T) {
	// 任意长文本：按序拼接的块应覆盖原文的全部非空白内容
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := textutil.SplitIntoChunks(text, 100, 20)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, " ")
	assert.GreaterOrEqual(t, len(joined), len(text)-100)

	for _, chunk := range chunks {
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
		assert.NotEmpty(t, chunk)
		assert.LessOrEqual(t, len([]rune(chunk)), 100)
	}
}

func TestSplitIntoChunksIdempotent(t *testing.T) {
	// 对已经是单块的文本再次分块应原样返回
	text := "users table has id, name, email"
	first := textutil.SplitIntoChunks(text, 500, 50)
	require.Len(t, first, 1)

	second := textutil.SplitIntoChunks(first[0], 500, 50)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])
}

func TestSplitIntoChunksTerminates(t *testing.T) {
	// overlap 接近 chunkSize 时游标仍须严格前进
	text := strings.Repeat("x", 2000)
	chunks := textutil.SplitIntoChunks(text, 10, 9)
	assert.NotEmpty(t, chunks)
}

func TestHashString(t *testing.T) {
	hash1 := textutil.HashString("test")
	hash2 := textutil.HashString("test")
	assert.Equal(t, hash1, hash2)

	hash3 := textutil.HashString("different")
	assert.NotEqual(t, hash1, hash3)

	assert.Len(t, hash1, 32)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"短于限制", "hello", 10, "hello"},
		{"等于限制", "hello", 5, "hello"},
		{"超过限制", "hello world", 5, "hello"},
		{"中文字符", "你好世界", 2, "你好"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.TruncateString(tt.input, tt.maxLen))
		})
	}
}
