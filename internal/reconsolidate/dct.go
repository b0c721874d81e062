package reconsolidate

import (
	"context"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
)

// forwardDCT applies an orthonormal DCT-II along axis 0 (the chunk/row axis)
// of an N x D matrix, one independent transform per column. The D column
// transforms are fanned out across a bounded worker pool and joined before
// the caller proceeds — no goroutine observes another's column.
func forwardDCT(ctx context.Context, matrix [][]float32) ([][]float32, error) {
	return transformColumns(ctx, matrix, dctIIColumn)
}

// inverseDCT applies the matching orthonormal IDCT-III along axis 0.
func inverseDCT(ctx context.Context, matrix [][]float32) ([][]float32, error) {
	return transformColumns(ctx, matrix, idctIIIColumn)
}

// transformColumns applies transform to each of the D columns of matrix
// independently and in parallel, returning a new N x D matrix.
func transformColumns(ctx context.Context, matrix [][]float32, transform func([]float32) []float32) ([][]float32, error) {
	n := len(matrix)
	if n == 0 {
		return nil, nil
	}
	d := len(matrix[0])

	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, d)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for col := 0; col < d; col++ {
		col := col
		g.Go(func() error {
			column := make([]float32, n)
			for row := 0; row < n; row++ {
				column[row] = matrix[row][col]
			}

			transformed := transform(column)

			for row := 0; row < n; row++ {
				out[row][col] = transformed[row]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// dctIIColumn computes the orthonormal (norm='ortho') DCT-II of a 1-D
// signal, matching scipy.fft.dct(x, norm='ortho').
func dctIIColumn(x []float32) []float32 {
	n := len(x)
	out := make([]float32, n)
	if n == 0 {
		return out
	}

	factor := math32.Pi / float32(n)
	for k := 0; k < n; k++ {
		var sum float32
		for i := 0; i < n; i++ {
			sum += x[i] * math32.Cos(factor*(float32(i)+0.5)*float32(k))
		}

		scale := math32.Sqrt(2.0 / float32(n))
		if k == 0 {
			scale = math32.Sqrt(1.0 / float32(n))
		}
		out[k] = scale * sum
	}

	return out
}

// idctIIIColumn computes the orthonormal IDCT-III of a 1-D signal, the
// exact inverse of dctIIColumn (matching scipy.fft.idct(x, norm='ortho')).
func idctIIIColumn(c []float32) []float32 {
	n := len(c)
	out := make([]float32, n)
	if n == 0 {
		return out
	}

	c0 := c[0] * math32.Sqrt(1.0/float32(n))
	scaleRest := math32.Sqrt(2.0 / float32(n))

	for i := 0; i < n; i++ {
		sum := c0
		for k := 1; k < n; k++ {
			sum += scaleRest * c[k] * math32.Cos(math32.Pi/float32(n)*float32(k)*(float32(i)+0.5))
		}
		out[i] = sum
	}

	return out
}
