package services_test

import (
	"math"
	"testing"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	"github.com/stretchr/testify/require"
)

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestGenerateEmbedding_ZeroLabelsStayZero(t *testing.T) {
	v := services.GenerateEmbedding(nil, 128)
	require.Len(t, v, 128)
	require.True(t, services.IsZeroVector(v))
	for _, x := range v {
		require.False(t, math.IsNaN(float64(x)))
	}
}

func TestGenerateEmbedding_UnitNorm(t *testing.T) {
	v := services.GenerateEmbedding([]po.ModerationLabel{
		{Name: "Alcohol", ParentCategory: "Alcohol", Confidence: 0.6},
		{Name: "Smoking", ParentCategory: "Tobacco", Confidence: 0.4},
	}, 128)
	require.InDelta(t, 1.0, l2(v), 1e-5)
}

func TestGenerateEmbedding_ParentWithoutConfidenceUsesDefault(t *testing.T) {
	v := services.GenerateEmbedding([]po.ModerationLabel{{Name: "Drinking", ParentCategory: "Alcohol"}}, 16)
	require.False(t, services.IsZeroVector(v))
	require.InDelta(t, 1.0, l2(v), 1e-5)
}

func TestGenerateEmbedding_DeterministicAndCaseInsensitive(t *testing.T) {
	a := services.GenerateEmbedding([]po.ModerationLabel{{Name: "Gambling", Confidence: 0.7}}, 64)
	b := services.GenerateEmbedding([]po.ModerationLabel{{Name: "GAMBLING", Confidence: 0.7}}, 64)
	require.Equal(t, a, b)
}

func TestGenerateEmbedding_DefaultDims(t *testing.T) {
	v := services.GenerateEmbedding([]po.ModerationLabel{{Name: "x", Confidence: 1}}, 0)
	require.Len(t, v, services.DefaultEmbeddingDims)
}
