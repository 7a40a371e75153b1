package services

import (
	"math"
	"strings"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
)

const (
	// DefaultEmbeddingDims 为向量维度默认值。
	DefaultEmbeddingDims = 128
	embeddingWeight      = 0.1
	defaultParentWeight  = 0.5
)

// GenerateEmbedding 把标签折叠成固定维度的词袋向量。
//
// 每个标签名与父类目名分别哈希到一个维度并累加 confidence*0.1，
// 父类目缺少置信度时按 0.5 计。最终做 L2 归一化，全零向量原样返回。
func GenerateEmbedding(labels []po.ModerationLabel, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultEmbeddingDims
	}
	acc := make([]float64, dims)
	for _, label := range labels {
		if label.Name != "" {
			acc[labelDimension(label.Name, dims)] += label.Confidence * embeddingWeight
		}
		if label.ParentCategory != "" {
			weight := label.Confidence
			if weight <= 0 {
				weight = defaultParentWeight
			}
			acc[labelDimension(label.ParentCategory, dims)] += weight * embeddingWeight
		}
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	norm := math.Sqrt(sum)

	out := make([]float32, dims)
	for i, v := range acc {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

// labelDimension 对小写字符串做 31 进制滚动哈希（32 位回绕），取绝对值后对维度取模。
func labelDimension(term string, dims int) int {
	var h int32
	for _, r := range strings.ToLower(term) {
		h = 31*h + int32(r)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(dims))
}

// IsZeroVector 报告向量是否全零。
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
