package ocr

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/ironsheep/vision-explain/internal/detection"
)

const (
	// Name is the backend name of the OCR detector.
	Name = "ocr"

	// TextClass is the class id of recognised words. Class 0 is background.
	TextClass = 1

	DefaultLanguage      = "eng"
	DefaultMinConfidence = 0.3
)

// ErrOCRUnavailable is returned when the binary was built without Tesseract support.
var ErrOCRUnavailable = errors.New("OCR is not available in this build (requires cgo and tesseract)")

// Labels are the class names reported by the OCR detector.
var Labels = []string{"__background__", "text"}

// Word is one recognised word with its box and confidence in [0, 1].
type Word struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Bounds     image.Rectangle `json:"bounds"`
}

// Options configures the OCR detector.
type Options struct {
	// Language is the Tesseract language code.
	Language string

	// TessdataPrefix overrides the tessdata directory. Empty uses the system default.
	TessdataPrefix string

	// MinConfidence drops words recognised with lower confidence.
	MinConfidence float64
}

// engine recognises words in an image.
type engine interface {
	words(ctx context.Context, img image.Image) ([]Word, error)
	version() string
}

// Detector reports recognised words as detections of class "text".
type Detector struct {
	opts   Options
	engine engine
}

// NewDetector creates an OCR detector.
func NewDetector(opts Options) (*Detector, error) {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	eng, err := newEngine(opts)
	if err != nil {
		return nil, err
	}
	return &Detector{opts: opts, engine: eng}, nil
}

// Name returns "ocr".
func (d *Detector) Name() string {
	return Name
}

// Labels returns the class names of the detector's class ids.
func (d *Detector) Labels() []string {
	return Labels
}

// Version returns the Tesseract version string.
func (d *Detector) Version() string {
	return d.engine.version()
}

// Close is a no-op; clients are released after every call.
func (d *Detector) Close() error {
	return nil
}

// Detect recognises words in img and returns one detection per word.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words, err := d.engine.words(ctx, img)
	if err != nil {
		return nil, err
	}
	return wordsToDetections(words, img.Bounds().Min, d.opts.MinConfidence), nil
}

// Words returns the raw recognised words, without confidence filtering.
func (d *Detector) Words(ctx context.Context, img image.Image) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.engine.words(ctx, img)
}

// wordsToDetections converts words to detections. Boxes are shifted by origin so
// they are expressed in the image's own coordinates; blank and low-confidence words
// are dropped.
func wordsToDetections(words []Word, origin image.Point, minConfidence float64) []detection.Detection {
	dets := make([]detection.Detection, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" || w.Confidence < minConfidence {
			continue
		}
		r := w.Bounds.Add(origin)
		if r.Empty() {
			continue
		}
		dets = append(dets, detection.NewDetection(detection.BoundsFromRect(r), TextClass, w.Confidence, len(Labels)))
	}
	detection.SortByScore(dets)
	return dets
}
