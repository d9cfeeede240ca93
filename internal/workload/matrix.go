package workload

import (
	"context"
	"fmt"

	"github.com/tahsin716/stealpool"
)

// MatrixSize is the edge length of Matrix.
const MatrixSize = 64

// Matrix is a dense square matrix, kept by value so a product is one
// allocation.
type Matrix [MatrixSize][MatrixSize]float32

// Identity returns the identity matrix.
func Identity() *Matrix {
	m := new(Matrix)
	for i := range m {
		m[i][i] = 1
	}
	return m
}

// Multiply returns a newly allocated a × b.
func Multiply(a, b *Matrix) *Matrix {
	out := new(Matrix)
	for i := 0; i < MatrixSize; i++ {
		for j := 0; j < MatrixSize; j++ {
			var sum float32
			for k := 0; k < MatrixSize; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// MultiplyMany computes a × b n times, one task per product, and returns
// every product. The callers own the results; nothing is shared between
// tasks except the read-only inputs.
func MultiplyMany(ctx context.Context, pool *stealpool.Pool, a, b *Matrix, n int) ([]*Matrix, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative product count %d", n)
	}

	futures := make([]*stealpool.Future[*Matrix], n)
	for i := range futures {
		futures[i] = stealpool.Submit(ctx, pool, func(context.Context) (*Matrix, error) {
			return Multiply(a, b), nil
		})
	}

	out := make([]*Matrix, n)
	for i, f := range futures {
		m, err := f.Get()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}
