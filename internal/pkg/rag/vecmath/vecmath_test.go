package vecmath_test

import (
	"testing"

	"github.com/itissonu/genaiquery/internal/pkg/rag/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
	}{
		{
			name:     "相同向量",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "正交向量",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "相反向量",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "零向量",
			a:        []float64{0.0, 0.0, 0.0},
			b:        []float64{1.0, 2.0, 3.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := vecmath.CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.3, -1.2, 4.5, 0.7}
	b := []float64{2.1, 0.4, -0.9, 1.3}

	ab, err := vecmath.CosineSimilarity(a, b)
	require.NoError(t, err)
	ba, err := vecmath.CosineSimilarity(b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab, ba, 1e-12)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := vecmath.CosineSimilarity([]float64{1.0, 2.0}, []float64{1.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, vecmath.ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	v := vecmath.Normalize([]float64{3.0, 4.0})
	assert.InDelta(t, 0.6, v[0], 0.0001)
	assert.InDelta(t, 0.8, v[1], 0.0001)
	assert.InDelta(t, 1.0, vecmath.L2Norm(v), 0.0001)

	// 零向量归一化不应 panic，按范数 1 处理
	zero := vecmath.Normalize([]float64{0.0, 0.0})
	assert.Equal(t, []float64{0.0, 0.0}, zero)
}

func TestFloatConversion(t *testing.T) {
	v64 := []float64{1.5, -2.25, 0.0}
	v32 := vecmath.ToFloat32(v64)
	back := vecmath.ToFloat64(v32)
	assert.Equal(t, v64, back)
}
