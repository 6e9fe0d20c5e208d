package vision

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Gray is a grayscale raster with intensities in [0, 255].
type Gray struct {
	W, H int
	Pix  []float64 // row-major, len W*H
}

// NewGray allocates a black W×H raster.
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the intensity at (x, y).
func (g *Gray) At(x, y int) float64 {
	return g.Pix[y*g.W+x]
}

// Set stores an intensity at (x, y).
func (g *Gray) Set(x, y int, v float64) {
	g.Pix[y*g.W+x] = v
}

// Bounds returns the raster rectangle anchored at the origin.
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.W, g.H)
}

// Sub copies the part of g inside r.
func (g *Gray) Sub(r image.Rectangle) *Gray {
	r = r.Intersect(g.Bounds())
	out := NewGray(r.Dx(), r.Dy())
	for y := 0; y < out.H; y++ {
		copy(out.Pix[y*out.W:(y+1)*out.W], g.Pix[(r.Min.Y+y)*g.W+r.Min.X:])
	}
	return out
}

// Image converts back to an 8-bit image.Gray.
func (g *Gray) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for i, v := range g.Pix {
		img.Pix[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return img
}

// Downscale shrinks g by an integer factor with a box filter.
func (g *Gray) Downscale(factor int) *Gray {
	if factor <= 1 {
		return g
	}
	w, h := g.W/factor, g.H/factor
	if w < 1 || h < 1 {
		return g
	}
	return FromImage(imaging.Resize(g.Image(), w, h, imaging.Box))
}

// FromImage converts any image to grayscale using the usual luma weights.
func FromImage(img image.Image) *Gray {
	b := img.Bounds()
	out := NewGray(b.Dx(), b.Dy())

	if gi, ok := img.(*image.Gray); ok {
		for y := 0; y < out.H; y++ {
			row := gi.Pix[y*gi.Stride : y*gi.Stride+out.W]
			for x, v := range row {
				out.Pix[y*out.W+x] = float64(v)
			}
		}
		return out
	}

	nrgba := imaging.Grayscale(img)
	for y := 0; y < out.H; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+out.W*4]
		for x := 0; x < out.W; x++ {
			out.Pix[y*out.W+x] = float64(row[x*4])
		}
	}
	return out
}

// Open loads an image file as grayscale.
func Open(path string) (*Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return FromImage(img), nil
}
