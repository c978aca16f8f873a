package drise

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"

	"github.com/ironsheep/vision-explain/internal/imaging"
)

var (
	// ErrInvalidMaskSize is returned for a mask or grid with a non-positive dimension.
	ErrInvalidMaskSize = errors.New("mask size and grid resolution must be positive")

	// ErrMaskMismatch is returned by Fuse when the mask and image sizes differ.
	ErrMaskMismatch = errors.New("mask size does not match image size")
)

// Mask is a per-pixel weight map in [0, 1], stored row-major.
type Mask struct {
	Width  int
	Height int
	Values []float64

	img *image.RGBA
}

// At returns the weight at (x, y).
func (m *Mask) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Image returns the mask as a grey RGBA image (0 black, 1 white).
func (m *Mask) Image() *image.RGBA {
	return m.img
}

// Mean returns the average weight, i.e. the fraction of the image the mask keeps.
func (m *Mask) Mean() float64 {
	if len(m.Values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.Values {
		sum += v
	}
	return sum / float64(len(m.Values))
}

// GenerateMask draws a random mask for a width x height image.
//
// res is the number of grid cells along each axis; each cell is kept with probability
// keepProb. The grid is upsampled with bilinear filtering to (width+padding.X,
// height+padding.Y) and a width x height window is cut at a random offset in
// [0, padding). A zero padding component disables shifting along that axis.
func GenerateMask(rng *rand.Rand, width, height int, res, padding image.Point, keepProb float64) (*Mask, error) {
	if width <= 0 || height <= 0 || res.X <= 0 || res.Y <= 0 {
		return nil, ErrInvalidMaskSize
	}
	padding.X = max(0, padding.X)
	padding.Y = max(0, padding.Y)

	grid := image.NewGray(image.Rect(0, 0, res.X, res.Y))
	for y := 0; y < res.Y; y++ {
		for x := 0; x < res.X; x++ {
			if rng.Float64() < keepProb {
				grid.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	up := transform.Resize(grid, width+padding.X, height+padding.Y, transform.Linear)

	var dx, dy int
	if padding.X > 0 {
		dx = rng.Intn(padding.X)
	}
	if padding.Y > 0 {
		dy = rng.Intn(padding.Y)
	}

	crop := imaging.ToRGBA(up.SubImage(image.Rect(dx, dy, dx+width, dy+height)))

	m := &Mask{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		img:    crop,
	}
	for y := 0; y < height; y++ {
		row := crop.Pix[y*crop.Stride:]
		for x := 0; x < width; x++ {
			m.Values[y*width+x] = float64(row[x*4]) / 255
		}
	}
	return m, nil
}

// DefaultPadding returns one grid cell of padding for a width x height image.
func DefaultPadding(width, height int, res image.Point) image.Point {
	if res.X <= 0 || res.Y <= 0 {
		return image.Point{}
	}
	return image.Pt(
		int(math.Ceil(float64(width)/float64(res.X))),
		int(math.Ceil(float64(height)/float64(res.Y))),
	)
}

// Fuse multiplies img by the mask. Fully masked pixels become black.
// The result is a new image with its origin at (0, 0).
func Fuse(img image.Image, mask *Mask) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() != mask.Width || b.Dy() != mask.Height {
		return nil, ErrMaskMismatch
	}
	return blend.Multiply(imaging.ToRGBA(img), mask.img), nil
}
