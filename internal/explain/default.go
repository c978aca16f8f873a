package explain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ironsheep/vision-explain/internal/assets"
	"github.com/ironsheep/vision-explain/internal/config"
	"github.com/ironsheep/vision-explain/internal/detection"
	"github.com/ironsheep/vision-explain/internal/ocr"
	"github.com/ironsheep/vision-explain/internal/onnx"
)

// NewRegistry registers the contour, onnx and ocr backends built from cfg.
func NewRegistry(cfg *config.Config) *detection.Registry {
	r := detection.NewRegistry()
	r.Register(config.BackendContour, func(ctx context.Context) (detection.Detector, error) {
		return newContour(cfg.Model.NumClasses), nil
	})
	r.Register(config.BackendONNX, func(ctx context.Context) (detection.Detector, error) {
		return newONNX(ctx, cfg, cfg.Model.NumClasses)
	})
	r.Register(config.BackendOCR, func(ctx context.Context) (detection.Detector, error) {
		return newOCR(cfg)
	})
	return r
}

// DefaultDetector builds the detector named by cfg.Model.Backend.
func DefaultDetector(ctx context.Context, cfg *config.Config) (detection.Detector, error) {
	return New(cfg).DefaultDetector(ctx, cfg.Model.NumClasses)
}

// DefaultDetector builds the configured backend for numClasses classes. A
// non-positive numClasses means model.num_classes.
func (e *Explainer) DefaultDetector(ctx context.Context, numClasses int) (detection.Detector, error) {
	if numClasses <= 0 {
		numClasses = e.cfg.Model.NumClasses
	}
	backend := e.cfg.Model.Backend
	if backend == "" {
		backend = config.BackendContour
	}
	slog.Debug("Creating default detector", "backend", backend, "num_classes", numClasses)

	switch backend {
	case config.BackendContour:
		return newContour(numClasses), nil
	case config.BackendONNX:
		return newONNX(ctx, e.cfg, numClasses)
	default:
		return e.registry.New(ctx, backend)
	}
}

// Detector builds the named backend for numClasses classes. An empty backend is the
// configured one.
func (e *Explainer) Detector(ctx context.Context, backend string, numClasses int) (detection.Detector, error) {
	if backend == "" || backend == e.cfg.Model.Backend {
		return e.DefaultDetector(ctx, numClasses)
	}
	cfg := *e.cfg
	cfg.Model.Backend = backend
	other := &Explainer{cfg: &cfg, cache: e.cache, registry: NewRegistry(&cfg)}
	return other.DefaultDetector(ctx, numClasses)
}

func newContour(numClasses int) detection.Detector {
	opts := detection.DefaultContourOptions()
	if numClasses > 0 {
		opts.NumClasses = numClasses
	}
	return detection.NewContourDetector(opts)
}

// newONNX resolves the model file, downloading it first when it is missing and a URL
// is configured, and loads it.
func newONNX(ctx context.Context, cfg *config.Config, numClasses int) (detection.Detector, error) {
	path := cfg.ModelPath()
	if cfg.Model.URL != "" {
		var err error
		path, err = assets.Download(ctx, cfg.Model.URL, path, cfg.Model.ForceDownload)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch model: %w", err)
		}
	}

	o := cfg.Model.ONNX
	det, err := onnx.NewDetector(onnx.Options{
		ModelPath:     path,
		SharedLibrary: config.ExpandPath(o.SharedLibrary),
		InputName:     o.InputName,
		OutputNames:   o.OutputNames,
		InputWidth:    o.InputWidth,
		InputHeight:   o.InputHeight,
		PoolSize:      o.PoolSize,
		NumClasses:    numClasses,
	})
	if err != nil {
		return nil, err
	}
	return det, nil
}

func newOCR(cfg *config.Config) (detection.Detector, error) {
	det, err := ocr.NewDetector(ocr.Options{
		Language: cfg.Model.OCR.Language,
	})
	if err != nil {
		return nil, err
	}
	return det, nil
}
