// Package onnx runs Faster R-CNN style detection models through ONNX Runtime.
//
// The model must take one float32 NCHW input with RGB values in [0, 1] and produce
// three outputs: boxes [N,4] as x1,y1,x2,y2 in input pixels, labels [N] int64 and
// scores [N] float32. This is the layout of torchvision detection models exported
// with torch.onnx.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/vision-explain/internal/detection"
)

// Name is the backend name of the ONNX detector.
const Name = "onnx"

var (
	envOnce sync.Once
	envErr  error
)

// InitEnvironment loads the ONNX Runtime shared library once per process.
// An empty libPath uses the binding's platform default.
func InitEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Options configures the ONNX detector.
type Options struct {
	ModelPath     string
	SharedLibrary string
	InputName     string
	OutputNames   []string // boxes, labels, scores
	InputWidth    int
	InputHeight   int
	PoolSize      int
	NumClasses    int
}

func (o Options) validate() error {
	switch {
	case o.ModelPath == "":
		return errors.New("model path is required")
	case o.InputName == "":
		return errors.New("input name is required")
	case len(o.OutputNames) != 3:
		return fmt.Errorf("expected 3 output names (boxes, labels, scores), got %d", len(o.OutputNames))
	case o.InputWidth <= 0 || o.InputHeight <= 0:
		return fmt.Errorf("invalid input size %dx%d", o.InputWidth, o.InputHeight)
	case o.NumClasses <= 0:
		return fmt.Errorf("invalid class count %d", o.NumClasses)
	}
	return nil
}

// session is one ONNX Runtime session with its preallocated input tensor.
type session struct {
	run   *ort.DynamicAdvancedSession
	input *ort.Tensor[float32]
}

func (s *session) Destroy() error {
	var errs []error
	if s.run != nil {
		errs = append(errs, s.run.Destroy())
	}
	if s.input != nil {
		errs = append(errs, s.input.Destroy())
	}
	return errors.Join(errs...)
}

// Detector runs an ONNX detection model. It is safe for concurrent use; at most
// PoolSize inferences run at once.
type Detector struct {
	opts Options
	pool *Pool[*session]
}

// NewDetector loads the model into a pool of sessions.
func NewDetector(opts Options) (*Detector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := InitEnvironment(opts.SharedLibrary); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	pool, err := NewPool(opts.PoolSize, func() (*session, error) {
		return newSession(opts)
	})
	if err != nil {
		return nil, err
	}
	return &Detector{opts: opts, pool: pool}, nil
}

func newSession(opts Options) (*session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	threads := max(1, runtime.NumCPU()/max(1, opts.PoolSize))
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting thread count: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.InputHeight), int64(opts.InputWidth)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	run, err := ort.NewDynamicAdvancedSession(opts.ModelPath, []string{opts.InputName}, opts.OutputNames, options)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &session{run: run, input: input}, nil
}

// Name returns "onnx".
func (d *Detector) Name() string {
	return Name
}

// Close destroys all sessions.
func (d *Detector) Close() error {
	return d.pool.Destroy()
}

// Metrics returns the session pool counters.
func (d *Detector) Metrics() PoolMetrics {
	return d.pool.Metrics()
}

// Detect resizes img to the model input, runs inference and maps the boxes back to
// img's coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	s, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Release(s)

	b := img.Bounds()
	resized := imaging.Resize(img, d.opts.InputWidth, d.opts.InputHeight, imaging.Linear)
	preprocess(resized, s.input.GetData())

	outputs := make([]ort.Value, 3)
	if err := s.run.Run([]ort.Value{s.input}, outputs); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	boxes, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("boxes output: unexpected type %T", outputs[0])
	}
	labels, ok := outputs[1].(*ort.Tensor[int64])
	if !ok {
		return nil, fmt.Errorf("labels output: unexpected type %T", outputs[1])
	}
	scores, ok := outputs[2].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("scores output: unexpected type %T", outputs[2])
	}

	scaleX := float64(b.Dx()) / float64(d.opts.InputWidth)
	scaleY := float64(b.Dy()) / float64(d.opts.InputHeight)
	return decodeOutputs(boxes.GetData(), labels.GetData(), scores.GetData(), scaleX, scaleY, b.Min, d.opts.NumClasses)
}

// preprocess writes img as planar RGB in [0, 1] into dst, which must hold 3*W*H values.
func preprocess(img *image.NRGBA, dst []float32) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	channelSize := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		offset := y * w
		for x := 0; x < w; x++ {
			i := offset + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[channelSize+i] = float32(row[x*4+1]) / 255.0
			dst[channelSize*2+i] = float32(row[x*4+2]) / 255.0
		}
	}
}

// decodeOutputs converts raw model outputs to detections in original image
// coordinates. Boxes are scaled by (scaleX, scaleY), shifted by origin and clipped
// to non-negative values.
func decodeOutputs(boxes []float32, labels []int64, scores []float32, scaleX, scaleY float64, origin image.Point, numClasses int) ([]detection.Detection, error) {
	n := len(scores)
	if len(labels) != n || len(boxes) != 4*n {
		return nil, fmt.Errorf("output size mismatch: %d boxes, %d labels, %d scores", len(boxes)/4, len(labels), n)
	}

	dets := make([]detection.Detection, 0, n)
	for i := 0; i < n; i++ {
		bx := detection.Bounds{
			X1: max(0, float64(boxes[4*i])*scaleX) + float64(origin.X),
			Y1: max(0, float64(boxes[4*i+1])*scaleY) + float64(origin.Y),
			X2: max(0, float64(boxes[4*i+2])*scaleX) + float64(origin.X),
			Y2: max(0, float64(boxes[4*i+3])*scaleY) + float64(origin.Y),
		}
		if bx.Empty() {
			continue
		}
		dets = append(dets, detection.NewDetection(bx, int(labels[i]), float64(scores[i]), numClasses))
	}
	detection.SortByScore(dets)
	return dets, nil
}
