package workload

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Color is an 8-bit RGB pixel.
type Color struct {
	R, G, B uint8
}

// Image is a row-major RGB raster. Rows are written by independent tasks,
// so a row never has more than one writer.
type Image struct {
	Width  int
	Height int
	Pix    []Color
}

// NewImage allocates a w×h image.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]Color, w*h)}
}

// At returns the pixel at (x, y).
func (img *Image) At(x, y int) Color {
	return img.Pix[y*img.Width+x]
}

// Set stores the pixel at (x, y).
func (img *Image) Set(x, y int, c Color) {
	img.Pix[y*img.Width+x] = c
}

// WritePPM encodes the image as plain-text PPM (P3).
func (img *Image) WritePPM(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P3\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	for _, p := range img.Pix {
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", p.R, p.G, p.B); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePNG encodes the image as PNG.
func (img *Image) WritePNG(w io.Writer) error {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			p := img.At(x, y)
			rgba.SetRGBA(x, y, color.RGBA{R: p.R, G: p.G, B: p.B, A: 255})
		}
	}
	return png.Encode(w, rgba)
}
