package detection

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/lucasb-eyer/go-colorful"
)

// ContourOptions configures a ContourDetector.
type ContourOptions struct {
	// NumClasses is the length of the class-score vectors. Class 0 is reserved
	// for background; object hues are bucketed over classes 1..NumClasses-1.
	NumClasses int

	// MinArea is the smallest box area, in square pixels, reported as an object.
	MinArea float64

	// Tolerance is the minimum rectangularity (0.0 to 1.0) for a contour to count.
	Tolerance float64

	// EdgeThreshold is the gradient magnitude (0-255) at or above which a pixel is an
	// edge. A sharp step between two flat regions scores their gray-level difference;
	// a smooth ramp scores about twice its per-pixel slope.
	EdgeThreshold uint8

	// NMSThreshold is the IoU above which overlapping boxes of the same class merge.
	NMSThreshold float64
}

// DefaultContourOptions returns the options used by the built-in default model.
func DefaultContourOptions() ContourOptions {
	return ContourOptions{
		NumClasses:    len(COCOLabels),
		MinArea:       400,
		Tolerance:     0.6,
		EdgeThreshold: 64,
		NMSThreshold:  0.5,
	}
}

// ContourDetector finds solid, roughly rectangular objects in an image.
//
// It needs no model file and no native runtime, which makes it the default when no
// neural detector is configured. It works best on clean images: flat objects on a
// contrasting background.
//
// # Algorithm
//
//  1. Edge Detection: grayscale, signed Sobel gradients, magnitude, threshold at EdgeThreshold
//  2. Contour Finding: 8-connected flood fill over edge pixels
//  3. Rectangularity: fraction of contour pixels lying on the bounding box border
//     multiplied by the fraction of the border that is covered by edges
//  4. Classification: mean hue of the box interior bucketed into NumClasses-1 classes
//  5. Filtering: MinArea, Tolerance and per-class non-maximum suppression
//
// The detector is stateless and safe for concurrent use.
type ContourDetector struct {
	opts ContourOptions
}

// NewContourDetector creates a contour detector. Zero-valued options take defaults.
func NewContourDetector(opts ContourOptions) *ContourDetector {
	def := DefaultContourOptions()
	if opts.NumClasses <= 0 {
		opts.NumClasses = def.NumClasses
	}
	if opts.MinArea <= 0 {
		opts.MinArea = def.MinArea
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.EdgeThreshold == 0 {
		opts.EdgeThreshold = def.EdgeThreshold
	}
	if opts.NMSThreshold <= 0 {
		opts.NMSThreshold = def.NMSThreshold
	}
	return &ContourDetector{opts: opts}
}

// Name implements Detector.
func (d *ContourDetector) Name() string {
	return "contour"
}

// Close implements Detector. The contour detector holds no resources.
func (d *ContourDetector) Close() error {
	return nil
}

// Detect implements Detector.
func (d *ContourDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := detectEdges(img, d.opts.EdgeThreshold)
	contours := findContours(edges, width, height)

	dets := make([]Detection, 0, len(contours))
	for _, contour := range contours {
		minX, minY, maxX, maxY := contourBox(contour)
		box := Bounds{
			X1: float64(minX + bounds.Min.X),
			Y1: float64(minY + bounds.Min.Y),
			X2: float64(maxX + 1 + bounds.Min.X),
			Y2: float64(maxY + 1 + bounds.Min.Y),
		}
		if box.Area() < d.opts.MinArea {
			continue
		}

		confidence := rectangularity(contour, minX, minY, maxX, maxY)
		if confidence < d.opts.Tolerance {
			continue
		}

		class := d.classify(img, box)
		dets = append(dets, NewDetection(box, class, math.Round(confidence*1000)/1000, d.opts.NumClasses))
	}

	return NonMaxSuppression(dets, d.opts.NMSThreshold), nil
}

// classify buckets the mean hue of the central half of box into a class id.
func (d *ContourDetector) classify(img image.Image, box Bounds) int {
	if d.opts.NumClasses <= 1 {
		return 0
	}

	insetX := box.Width() / 4
	insetY := box.Height() / 4
	inner := Bounds{X1: box.X1 + insetX, Y1: box.Y1 + insetY, X2: box.X2 - insetX, Y2: box.Y2 - insetY}
	r := inner.Rect(img.Bounds())
	if r.Empty() {
		r = box.Rect(img.Bounds())
	}

	var sr, sg, sb, n float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			sr += float64(c.R)
			sg += float64(c.G)
			sb += float64(c.B)
			n++
		}
	}
	if n == 0 {
		return 1
	}

	mean := colorful.Color{R: sr / n / 255, G: sg / n / 255, B: sb / n / 255}
	h, _, _ := mean.Hsv()

	buckets := d.opts.NumClasses - 1
	class := 1 + int(h/360*float64(buckets))
	if class > buckets {
		class = buckets
	}
	return class
}

// edgeBias offsets the signed Sobel responses into the byte range. The kernels are
// scaled by 1/8 so a full black-to-white step lands on 0 or 255.
const edgeBias = 128

var (
	sobelX = &convolution.Kernel{
		Matrix: []float64{
			-0.125, 0, 0.125,
			-0.25, 0, 0.25,
			-0.125, 0, 0.125,
		},
		Width:  3,
		Height: 3,
	}
	sobelY = &convolution.Kernel{
		Matrix: []float64{
			-0.125, -0.25, -0.125,
			0, 0, 0,
			0.125, 0.25, 0.125,
		},
		Width:  3,
		Height: 3,
	}
)

// detectEdges returns a row-major edge mask: true where the gradient magnitude of the
// grayscale image reaches level.
//
// Both gradient signs are kept, so dark-to-light and light-to-dark transitions
// produce edges and every object outline closes.
func detectEdges(img image.Image, level uint8) [][]bool {
	if img.Bounds().Empty() {
		return nil
	}

	gray := effect.Grayscale(img)
	opts := &convolution.Options{Bias: edgeBias, KeepAlpha: true}
	gx := convolution.Convolve(gray, sobelX, opts)
	gy := convolution.Convolve(gray, sobelY, opts)

	gb := gx.Bounds()
	magnitude := image.NewGray(gb)
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			i := y*gx.Stride + x*4
			dx := float64(gx.Pix[i]) - edgeBias
			dy := float64(gy.Pix[i]) - edgeBias
			// A step of height d gives a response of d/2.
			magnitude.Pix[y*magnitude.Stride+x] = uint8(min(2*math.Hypot(dx, dy), 255))
		}
	}
	mask := segment.Threshold(magnitude, level)

	b := mask.Bounds()
	edges := make([][]bool, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		edges[y] = make([]bool, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			edges[y][x] = mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 0
		}
	}
	return edges
}

// findContours groups 8-connected edge pixels. Components under 10 pixels are noise.
func findContours(edges [][]bool, width, height int) [][]image.Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]image.Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := floodFill(edges, visited, x, y, width, height)
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours
}

// floodFill collects the component containing (startX, startY) with an explicit stack.
func floodFill(edges, visited [][]bool, startX, startY, width, height int) []image.Point {
	contour := make([]image.Point, 0, 64)
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return contour
}

func contourBox(contour []image.Point) (minX, minY, maxX, maxY int) {
	minX, minY = math.MaxInt, math.MaxInt
	maxX, maxY = math.MinInt, math.MinInt
	for _, p := range contour {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// rectangularity scores how well a contour traces its own bounding box.
//
// Sobel edges are a couple of pixels thick, so a pixel counts as "on the border"
// within a small band. The score is the product of:
//   - the share of contour pixels on the border (low for circles and blobs)
//   - the share of border positions touched by the contour (low for open shapes)
func rectangularity(contour []image.Point, minX, minY, maxX, maxY int) float64 {
	const band = 2

	w := maxX - minX + 1
	h := maxY - minY + 1
	if w <= 2*band || h <= 2*band {
		return 0
	}

	top := make([]bool, w)
	bottom := make([]bool, w)
	left := make([]bool, h)
	right := make([]bool, h)

	onBorder := 0
	for _, p := range contour {
		x := p.X - minX
		y := p.Y - minY
		hit := false
		if y <= band {
			top[x] = true
			hit = true
		}
		if y >= h-1-band {
			bottom[x] = true
			hit = true
		}
		if x <= band {
			left[y] = true
			hit = true
		}
		if x >= w-1-band {
			right[y] = true
			hit = true
		}
		if hit {
			onBorder++
		}
	}

	covered := 0
	for _, side := range [][]bool{top, bottom, left, right} {
		for _, c := range side {
			if c {
				covered++
			}
		}
	}

	borderShare := float64(onBorder) / float64(len(contour))
	coverage := float64(covered) / float64(2*(w+h))
	return borderShare * coverage
}
