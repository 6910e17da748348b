package vectordb

import (
	"fmt"

	"github.com/viant/vec/search"
)

// CosineDistance 返回 1 - cos(a, b)，取值 [0, 2]。
// 任一向量模长为 0 时视为不相关，距离为 1。
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectordb: dimension mismatch %d != %d", len(a), len(b))
	}
	va := search.Float32s(a)
	ma, mb := va.Magnitude(), search.Float32s(b).Magnitude()
	if ma == 0 || mb == 0 {
		return 1, nil
	}
	return float64(va.CosineDistanceWithMagnitude(b, ma, mb)), nil
}
