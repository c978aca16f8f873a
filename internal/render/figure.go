package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/anthonynsimon/bild/blend"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/vision-explain/internal/detection"
	"github.com/ironsheep/vision-explain/internal/drise"
	"github.com/ironsheep/vision-explain/internal/imaging"
)

const (
	DefaultAlpha    = 0.5
	DefaultBoxColor = "#00FF00"

	colorbarWidth  = 16
	colorbarMargin = 6
	boxThickness   = 2
	captionPadding = 2
)

// ErrSizeMismatch is returned when a saliency map does not match the image size.
var ErrSizeMismatch = errors.New("saliency map size does not match image size")

// Options controls figure rendering.
type Options struct {
	// Alpha is the heatmap opacity over the image, in [0, 1].
	Alpha float64

	// Colormap colorises saliency values. Nil means jet.
	Colormap *Colormap

	// BoxColor is the detection box and caption background color.
	BoxColor color.RGBA

	// HideColorbar drops the colorbar on the right of the figure.
	HideColorbar bool
}

// DefaultOptions returns a half-transparent jet overlay with a green box and a colorbar.
func DefaultOptions() Options {
	box, _ := imaging.ParseHexColor(DefaultBoxColor)
	return Options{
		Alpha:    DefaultAlpha,
		Colormap: Jet(),
		BoxColor: box,
	}
}

// Figure is one rendered saliency explanation.
type Figure struct {
	Image     *image.RGBA         `json:"-"`
	Index     int                 `json:"index"`
	Label     string              `json:"label"`
	Detection detection.Detection `json:"detection"`
}

// Caption returns the text drawn above the detection box.
func (f *Figure) Caption() string {
	return caption(f.Label, f.Detection.Score)
}

// PNGBase64 encodes the figure as base64 PNG.
func (f *Figure) PNGBase64() (string, error) {
	return imaging.EncodePNGBase64(f.Image)
}

func caption(label string, score float64) string {
	return label + " " + strconv.FormatFloat(score, 'f', 2, 64)
}

// NewFigure renders the saliency map of det over img.
//
// Parameters:
//   - img: The explained image. Its bounds must match sal.
//   - sal: The normalised saliency map of det.
//   - det: The explained detection; its box and score are drawn.
//   - label: The class name shown in the caption.
//   - opts: Blending, colormap and box color. A nil Colormap means jet.
//
// Returns:
//   - *Figure: The rendered image, origin at (0, 0).
//   - error: ErrSizeMismatch when sal does not cover img, or an error for an Alpha
//     outside [0, 1].
//
// # Layout
//
// The heatmap is blended over the image with opts.Alpha, the detection box and a caption
// bar are drawn on top and, unless hidden, a vertical colorbar is appended on the right.
// The colorbar widens the figure; its height is the image height.
func NewFigure(img image.Image, sal *drise.Map, det detection.Detection, label string, opts Options) (*Figure, error) {
	b := img.Bounds()
	if sal == nil || sal.Width != b.Dx() || sal.Height != b.Dy() {
		return nil, ErrSizeMismatch
	}
	if opts.Colormap == nil {
		opts.Colormap = Jet()
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("alpha %g outside [0, 1]", opts.Alpha)
	}

	base := imaging.ToRGBA(img)
	heat := image.NewRGBA(base.Bounds())
	for y := 0; y < sal.Height; y++ {
		for x := 0; x < sal.Width; x++ {
			heat.SetRGBA(x, y, opts.Colormap.At(sal.At(x, y)))
		}
	}
	overlay := blend.Opacity(base, heat, opts.Alpha)

	box := det.Bounds.Rect(overlay.Bounds())
	drawBox(overlay, box, opts.BoxColor)
	drawCaption(overlay, box, caption(label, det.Score), opts.BoxColor)

	out := overlay
	if !opts.HideColorbar {
		out = withColorbar(overlay, opts.Colormap)
	}

	return &Figure{
		Image:     out,
		Label:     label,
		Detection: det,
	}, nil
}

func drawBox(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := min(boxThickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawCaption draws text on a filled bar above r, or just inside r when r touches the top.
func drawCaption(dst *image.RGBA, r image.Rectangle, text string, bg color.RGBA) {
	if r.Empty() {
		return
	}
	face := basicfont.Face7x13
	h := face.Metrics().Height.Ceil() + 2*captionPadding
	w := font.MeasureString(face, text).Ceil() + 2*captionPadding

	top := r.Min.Y - h
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	bar := image.Rect(r.Min.X, top, r.Min.X+w, top+h).Intersect(dst.Bounds())
	draw.Draw(dst, bar, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(r.Min.X+captionPadding, top+captionPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// withColorbar returns img extended to the right by a vertical colorbar, 1 at the top.
func withColorbar(img *image.RGBA, cm *Colormap) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()+colorbarWidth+2*colorbarMargin, b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Src)

	x0 := b.Dx() + colorbarMargin
	h := b.Dy()
	for y := 0; y < h; y++ {
		v := 1.0
		if h > 1 {
			v = 1 - float64(y)/float64(h-1)
		}
		c := cm.At(v)
		for x := x0; x < x0+colorbarWidth; x++ {
			out.SetRGBA(x, y, c)
		}
	}
	return out
}
