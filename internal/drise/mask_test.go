package drise

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestGenerateMask_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, err := GenerateMask(rng, 60, 40, image.Pt(4, 4), image.Pt(15, 10), 0.5)
	require.NoError(t, err)

	assert.Equal(t, 60, m.Width)
	assert.Equal(t, 40, m.Height)
	require.Len(t, m.Values, 60*40)
	for _, v := range m.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, image.Rect(0, 0, 60, 40), m.Image().Bounds())
}

func TestGenerateMask_KeepAll(t *testing.T) {
	m, err := GenerateMask(rand.New(rand.NewSource(1)), 32, 32, image.Pt(4, 4), image.Pt(8, 8), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Mean(), 0.01)
}

func TestGenerateMask_KeepNone(t *testing.T) {
	m, err := GenerateMask(rand.New(rand.NewSource(1)), 32, 32, image.Pt(4, 4), image.Pt(8, 8), 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Mean())
}

func TestGenerateMask_Deterministic(t *testing.T) {
	a, err := GenerateMask(rand.New(rand.NewSource(42)), 48, 48, image.Pt(4, 4), image.Pt(12, 12), 0.5)
	require.NoError(t, err)
	b, err := GenerateMask(rand.New(rand.NewSource(42)), 48, 48, image.Pt(4, 4), image.Pt(12, 12), 0.5)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestGenerateMask_InvalidSize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := GenerateMask(rng, 0, 10, image.Pt(4, 4), image.Point{}, 0.5)
	assert.ErrorIs(t, err, ErrInvalidMaskSize)

	_, err = GenerateMask(rng, 10, 10, image.Pt(0, 4), image.Point{}, 0.5)
	assert.ErrorIs(t, err, ErrInvalidMaskSize)
}

func TestDefaultPadding(t *testing.T) {
	assert.Equal(t, image.Pt(25, 13), DefaultPadding(100, 50, image.Pt(4, 4)))
	assert.Equal(t, image.Point{}, DefaultPadding(100, 50, image.Pt(0, 4)))
}

func TestFuse(t *testing.T) {
	img := solidImage(16, 16, color.RGBA{200, 100, 50, 255})

	keep, err := GenerateMask(rand.New(rand.NewSource(1)), 16, 16, image.Pt(2, 2), image.Point{}, 1)
	require.NoError(t, err)
	fused, err := Fuse(img, keep)
	require.NoError(t, err)
	got := fused.RGBAAt(8, 8)
	assert.InDelta(t, 200, int(got.R), 2)
	assert.InDelta(t, 100, int(got.G), 2)
	assert.InDelta(t, 50, int(got.B), 2)

	drop, err := GenerateMask(rand.New(rand.NewSource(1)), 16, 16, image.Pt(2, 2), image.Point{}, 0)
	require.NoError(t, err)
	fused, err = Fuse(img, drop)
	require.NoError(t, err)
	got = fused.RGBAAt(8, 8)
	assert.Equal(t, uint8(0), got.R)
	assert.Equal(t, uint8(0), got.G)
	assert.Equal(t, uint8(0), got.B)
}

func TestFuse_SizeMismatch(t *testing.T) {
	m, err := GenerateMask(rand.New(rand.NewSource(1)), 8, 8, image.Pt(2, 2), image.Point{}, 0.5)
	require.NoError(t, err)

	_, err = Fuse(solidImage(16, 16, color.White), m)
	assert.ErrorIs(t, err, ErrMaskMismatch)
}
