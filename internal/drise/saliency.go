package drise

import (
	"context"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/vision-explain/internal/detection"
)

const (
	DefaultNumMasks        = 25
	DefaultKeepProbability = 0.5
	DefaultGridSize        = 4
)

var (
	// ErrNoTargets is returned when Saliency is asked to explain zero detections.
	ErrNoTargets = errors.New("no target detections to explain")

	// ErrInvalidOptions is returned for a non-positive mask count or a keep
	// probability outside (0, 1].
	ErrInvalidOptions = errors.New("invalid saliency options")
)

// Options controls mask sampling and the worker pool.
type Options struct {
	// NumMasks is the number of masked images evaluated.
	NumMasks int

	// Res is the mask grid resolution in cells.
	Res image.Point

	// Padding is the random shift range in pixels. Zero means one grid cell.
	Padding image.Point

	// KeepProbability is the chance each grid cell is kept.
	KeepProbability float64

	// Workers bounds how many masks are evaluated at once. Zero means runtime.NumCPU().
	Workers int

	// Seed seeds mask i with Seed+i.
	Seed int64
}

// DefaultOptions returns 25 masks on a 4x4 grid with keep probability 0.5.
func DefaultOptions() Options {
	return Options{
		NumMasks:        DefaultNumMasks,
		Res:             image.Pt(DefaultGridSize, DefaultGridSize),
		KeepProbability: DefaultKeepProbability,
		Workers:         runtime.NumCPU(),
	}
}

func (o Options) validate() error {
	if o.NumMasks <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "num masks %d", o.NumMasks)
	}
	if o.Res.X <= 0 || o.Res.Y <= 0 {
		return errors.Wrapf(ErrInvalidMaskSize, "grid %dx%d", o.Res.X, o.Res.Y)
	}
	if o.KeepProbability <= 0 || o.KeepProbability > 1 {
		return errors.Wrapf(ErrInvalidOptions, "keep probability %g", o.KeepProbability)
	}
	return nil
}

// Map is a saliency map for one target detection, normalised to [0, 1].
type Map struct {
	Width  int
	Height int
	Values []float64
}

// At returns the saliency at (x, y).
func (m *Map) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// MeanIn returns the average saliency inside r, clipped to the map.
func (m *Map) MeanIn(r image.Rectangle) float64 {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	if r.Empty() {
		return 0
	}
	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += m.At(x, y)
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}

// normalize rescales values to [0, 1]. A flat map becomes all zeros.
func (m *Map) normalize() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range m.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i, v := range m.Values {
		if span <= 0 {
			m.Values[i] = 0
			continue
		}
		m.Values[i] = (v - lo) / span
	}
}

// Stats summarises a Saliency run.
type Stats struct {
	Masks            int           `json:"masks"`
	TotalInference   time.Duration `json:"total_inference"`
	AverageInference time.Duration `json:"average_inference"`
	WallTime         time.Duration `json:"wall_time"`
}

// Saliency computes one map per target detection.
//
// # Algorithm
//
//  1. Mask i is drawn from a generator seeded with opts.Seed+i (see GenerateMask)
//  2. The image is multiplied by the mask and passed to det
//  3. For every target, the mask's weight is the affinity of the target with the
//     best matching masked detection (see Affinity)
//  4. Each target's map is the weighted sum of masks divided by opts.NumMasks,
//     then min-max normalised to [0, 1]
//
// # Concurrency
//
// Up to opts.Workers masks are evaluated at once, so det must be safe for concurrent
// use. Workers add into one accumulator per target under a lock. The first detector
// error or context cancellation stops all workers and is returned.
//
// Maps do not depend on opts.Workers beyond floating point summation order.
func Saliency(ctx context.Context, det detection.Detector, img image.Image, targets []detection.Detection, opts Options) ([]*Map, Stats, error) {
	if len(targets) == 0 {
		return nil, Stats{}, ErrNoTargets
	}
	if err := opts.validate(); err != nil {
		return nil, Stats{}, err
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil, Stats{}, ErrInvalidMaskSize
	}
	if opts.Padding == (image.Point{}) {
		opts.Padding = DefaultPadding(width, height, opts.Res)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, opts.NumMasks)

	start := time.Now()
	var inferNanos atomic.Int64

	indices := make(chan int)

	// One accumulator per target, shared by all workers.
	var accMu sync.Mutex
	acc := make([][]float64, len(targets))
	for t := range acc {
		acc[t] = make([]float64, width*height)
	}

	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(workers + 1)

	errGrp.Go(func() error {
		defer close(indices)
		for i := 0; i < opts.NumMasks; i++ {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case indices <- i:
			}
		}
		return nil
	})

	for goIdx := 0; goIdx < workers; goIdx++ {
		localGoIdx := goIdx
		errGrp.Go(func() error {
			for i := range indices {
				if err := gCtx.Err(); err != nil {
					return errors.Wrapf(err, "worker %d", localGoIdx)
				}

				rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
				mask, err := GenerateMask(rng, width, height, opts.Res, opts.Padding, opts.KeepProbability)
				if err != nil {
					return errors.Wrapf(err, "mask %d", i)
				}
				fused, err := Fuse(img, mask)
				if err != nil {
					return errors.Wrapf(err, "mask %d", i)
				}

				t0 := time.Now()
				masked, err := det.Detect(gCtx, fused)
				inferNanos.Add(int64(time.Since(t0)))
				if err != nil {
					return errors.Wrapf(err, "worker %d: detect on mask %d", localGoIdx, i)
				}

				affinities := Affinities(targets, masked)
				accMu.Lock()
				for t, aff := range affinities {
					if aff == 0 {
						continue
					}
					dst := acc[t]
					for p, v := range mask.Values {
						dst[p] += v * aff
					}
				}
				accMu.Unlock()
			}
			return nil
		})
	}

	if err := errGrp.Wait(); err != nil {
		return nil, Stats{}, err
	}

	maps := make([]*Map, len(targets))
	for t := range targets {
		m := &Map{Width: width, Height: height, Values: acc[t]}
		for p := range m.Values {
			m.Values[p] /= float64(opts.NumMasks)
		}
		m.normalize()
		maps[t] = m
	}

	total := time.Duration(inferNanos.Load())
	stats := Stats{
		Masks:            opts.NumMasks,
		TotalInference:   total,
		AverageInference: total / time.Duration(opts.NumMasks),
		WallTime:         time.Since(start),
	}
	slog.Debug("Saliency computed",
		"detector", det.Name(),
		"targets", len(targets),
		"masks", stats.Masks,
		"workers", workers,
		"avg_inference", stats.AverageInference,
		"wall_time", stats.WallTime,
	)
	return maps, stats, nil
}
