package workload

import (
	"context"
	"fmt"
	"math"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

// Mandelbrot renders the set over [-2.5, 1] × [-1.25, 1.25], one task per
// row. Rows crossing the set cost far more than rows outside it, which
// leaves the workers unevenly loaded until stealing evens them out.
func Mandelbrot(ctx context.Context, pool *stealpool.Pool, w, h, maxIter int) (*Image, error) {
	if w <= 0 || h <= 0 || maxIter <= 0 {
		return nil, fmt.Errorf("invalid fractal parameters %dx%d iter=%d", w, h, maxIter)
	}

	img := NewImage(w, h)
	g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))

	for y := 0; y < h; y++ {
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ci := -1.25 + 2.5*float64(y)/float64(h)
			for x := 0; x < w; x++ {
				cr := -2.5 + 3.5*float64(x)/float64(w)
				img.Set(x, y, paletteColor(escapeTime(cr, ci, maxIter), maxIter))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("mandelbrot: %w", err)
	}
	return img, nil
}

// escapeTime returns the iteration at which z escaped, or maxIter.
func escapeTime(cr, ci float64, maxIter int) int {
	var zr, zi float64
	for i := 0; i < maxIter; i++ {
		zr2, zi2 := zr*zr, zi*zi
		if zr2+zi2 > 4 {
			return i
		}
		zi = 2*zr*zi + ci
		zr = zr2 - zi2 + cr
	}
	return maxIter
}

func paletteColor(iter, maxIter int) Color {
	if iter >= maxIter {
		return Color{}
	}
	t := math.Sqrt(float64(iter) / float64(maxIter))
	return Color{
		R: uint8(9 * (1 - t) * t * t * t * 255),
		G: uint8(15 * (1 - t) * (1 - t) * t * t * 255),
		B: uint8(8.5 * (1 - t) * (1 - t) * (1 - t) * t * 255),
	}
}
