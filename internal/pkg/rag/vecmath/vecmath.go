// Package vecmath 提供嵌入向量的数值运算。
package vecmath

import (
	"fmt"
	"math"
)

// ErrDimensionMismatch 表示参与比较的两个向量维度不一致。
var ErrDimensionMismatch = fmt.Errorf("vector dimension mismatch")

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
// 向量维度不一致时返回 ErrDimensionMismatch；任一向量范数为零时返回 0。
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: len(a)=%d, len(b)=%d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// L2Norm 计算向量的 L2 范数。
func L2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize 将向量归一化为单位向量（就地修改并返回）。
// 范数为零时按 1 处理，避免除零。
func Normalize(v []float64) []float64 {
	norm := L2Norm(v)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// ToFloat32 将 float64 向量转换为 float32 向量（Milvus SDK 使用 float32）。
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// ToFloat64 将 float32 向量转换为 float64 向量。
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
