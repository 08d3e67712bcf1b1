package facematch

import "math"

// AverageEmbedding returns the component-wise mean of vectors, normalized to
// unit length. A zero-norm mean is returned unchanged. Nil for no input or
// vectors of differing dimensions.
func AverageEmbedding(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	n := float64(len(vectors))
	var norm float64
	for i := range sum {
		sum[i] /= n
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	for i, x := range sum {
		if norm == 0 {
			out[i] = float32(x)
		} else {
			out[i] = float32(x / norm)
		}
	}
	return out
}
