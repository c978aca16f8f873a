// Package explain is the end-to-end saliency entry point: it loads an image, runs a
// detector, computes one DRISE saliency map per detection, renders the maps over the
// image and saves them as numbered JPEG files.
package explain

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/ironsheep/vision-explain/internal/config"
	"github.com/ironsheep/vision-explain/internal/detection"
	"github.com/ironsheep/vision-explain/internal/drise"
	"github.com/ironsheep/vision-explain/internal/imaging"
	"github.com/ironsheep/vision-explain/internal/render"
)

// ErrNoImage is returned when a request has no image path.
var ErrNoImage = errors.New("image path is required")

// Request describes one explanation run. Zero values fall back to the configuration.
type Request struct {
	// ImagePath is the image to explain.
	ImagePath string

	// Detector explains this model. Nil selects the configured default detector,
	// which is created for the run and closed afterwards.
	Detector detection.Detector

	// NumClasses is the class-score vector length for single-label detectors.
	NumClasses int

	// SavePrefix is the output path prefix; figure i goes to SavePrefix+i+".jpg".
	// Empty means figures are returned but not written.
	SavePrefix string

	// MaxFigures caps how many detections are explained. 0 means all.
	MaxFigures int

	NumMasks        int
	MaskRes         image.Point
	MaskPadding     int
	KeepProbability float64
	Workers         int

	// Seed seeds mask sampling. 0 picks a time-based seed.
	Seed int64

	// ScoreThreshold drops weaker detections before explaining. Nil uses
	// model.score_threshold; 0 explains every detection.
	ScoreThreshold *float64

	// Labels names class ids. Nil uses the detector's own labels, then the configured
	// labels file, then COCO names.
	Labels []string
}

// Result is the outcome of GetSaliencyMap.
type Result struct {
	// Figures holds one rendered figure per explained detection.
	Figures []*render.Figure

	// SavePrefix echoes the request's prefix.
	SavePrefix string

	// Labels holds one label per figure.
	Labels []string

	// Paths lists the saved files, in figure order.
	Paths []string

	Detections []detection.Detection
	Saliency   []*drise.Map
	Stats      drise.Stats
	Seed       int64
}

// Explainer runs explanation requests against one configuration.
type Explainer struct {
	cfg      *config.Config
	cache    *imaging.ImageCache
	registry *detection.Registry
}

// New creates an Explainer. A nil cfg uses config.Default().
func New(cfg *config.Config) *Explainer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Explainer{
		cfg:      cfg,
		cache:    imaging.NewImageCache(),
		registry: NewRegistry(cfg),
	}
}

// WithCache makes the explainer share an image cache.
func (e *Explainer) WithCache(cache *imaging.ImageCache) *Explainer {
	e.cache = cache
	return e
}

// Config returns the explainer's configuration.
func (e *Explainer) Config() *config.Config {
	return e.cfg
}

// Registry returns the detector backends the explainer can build.
func (e *Explainer) Registry() *detection.Registry {
	return e.registry
}

// GetSaliencyMap explains req with the default configuration.
func GetSaliencyMap(ctx context.Context, req Request) (*Result, error) {
	return New(nil).GetSaliencyMap(ctx, req)
}

// GetSaliencyMap runs the detector on the image, computes a saliency map for each
// kept detection, renders it and, when a prefix is set, saves it.
//
// Parameters:
//   - ctx: Cancels detection and mask evaluation.
//   - req: The image and run settings. Zero-valued fields take the
//     configured value; a nil req.Detector builds the configured backend and closes
//     it before returning.
//
// Returns:
//   - *Result: Figures, labels and saved paths in detection order, strongest first,
//     capped at req.MaxFigures. Figure i is saved to req.SavePrefix + i + ".jpg".
//   - error: Non-nil if the image cannot be loaded, the detector cannot be built or
//     fails, or a figure cannot be rendered or written.
//
// An image without detections is not an error: the result is empty and nothing is
// written.
//
// # Errors
//
//   - ErrNoImage when req.ImagePath is empty
//   - detection.ErrUnknownBackend when the configured backend is not registered
//   - the detector's own error, wrapped, when it fails on the image or on any mask
func (e *Explainer) GetSaliencyMap(ctx context.Context, req Request) (*Result, error) {
	if req.ImagePath == "" {
		return nil, ErrNoImage
	}
	req = e.withDefaults(req)

	img, err := e.cache.Load(req.ImagePath)
	if err != nil {
		return nil, err
	}

	det := req.Detector
	if det == nil {
		det, err = e.DefaultDetector(ctx, req.NumClasses)
		if err != nil {
			return nil, err
		}
		defer det.Close()
	}

	labels, err := e.Labels(det, req.Labels)
	if err != nil {
		return nil, err
	}

	dets, err := det.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	dets = detection.FilterByScore(dets, *req.ScoreThreshold)
	detection.SortByScore(dets)

	result := &Result{
		Figures:    []*render.Figure{},
		SavePrefix: req.SavePrefix,
		Labels:     []string{},
		Paths:      []string{},
		Detections: dets,
		Seed:       req.Seed,
	}
	if len(dets) == 0 {
		slog.Warn("No detections above threshold, nothing to explain",
			"image", req.ImagePath,
			"detector", det.Name(),
			"threshold", *req.ScoreThreshold,
		)
		return result, nil
	}

	targets := dets
	if req.MaxFigures > 0 && len(targets) > req.MaxFigures {
		targets = targets[:req.MaxFigures]
	}

	opts := drise.Options{
		NumMasks:        req.NumMasks,
		Res:             req.MaskRes,
		Padding:         image.Pt(req.MaskPadding, req.MaskPadding),
		KeepProbability: req.KeepProbability,
		Workers:         req.Workers,
		Seed:            req.Seed,
	}
	maps, stats, err := drise.Saliency(ctx, det, img, targets, opts)
	if err != nil {
		return nil, fmt.Errorf("saliency failed: %w", err)
	}
	result.Saliency = maps
	result.Stats = stats

	ropts, err := e.renderOptions()
	if err != nil {
		return nil, err
	}
	for i, t := range targets {
		label := detection.LabelName(labels, t.Class)
		fig, err := render.NewFigure(img, maps[i], t, label, ropts)
		if err != nil {
			return nil, fmt.Errorf("failed to render figure %d: %w", i, err)
		}
		fig.Index = i
		result.Figures = append(result.Figures, fig)
		result.Labels = append(result.Labels, label)
	}

	if req.SavePrefix != "" {
		paths, err := render.SaveFigures(result.Figures, req.SavePrefix, e.cfg.Render.JPEGQuality)
		if err != nil {
			return nil, err
		}
		result.Paths = paths
	}

	slog.Info("Saliency maps generated",
		"image", req.ImagePath,
		"detector", det.Name(),
		"detections", len(dets),
		"figures", len(result.Figures),
		"masks", stats.Masks,
		"wall_time", stats.WallTime,
		"prefix", req.SavePrefix,
	)
	return result, nil
}

func (e *Explainer) withDefaults(req Request) Request {
	d := e.cfg.DRISE
	if req.NumClasses <= 0 {
		req.NumClasses = e.cfg.Model.NumClasses
	}
	if req.MaxFigures <= 0 {
		req.MaxFigures = e.cfg.Render.MaxFigures
	}
	if req.NumMasks <= 0 {
		req.NumMasks = d.NumMasks
	}
	if req.MaskRes == (image.Point{}) && len(d.MaskRes) == 2 {
		req.MaskRes = image.Pt(d.MaskRes[0], d.MaskRes[1])
	}
	if req.MaskRes == (image.Point{}) {
		req.MaskRes = image.Pt(drise.DefaultGridSize, drise.DefaultGridSize)
	}
	if req.MaskPadding <= 0 {
		req.MaskPadding = d.MaskPadding
	}
	if req.KeepProbability <= 0 {
		req.KeepProbability = d.KeepProbability
	}
	if req.Workers <= 0 {
		req.Workers = d.Workers
	}
	if req.Seed == 0 {
		req.Seed = d.Seed
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.ScoreThreshold == nil {
		threshold := e.cfg.Model.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	return req
}

// Labels resolves the class names for det: requested when non-nil, then the
// detector's own labels, then the configured labels file, then COCO names.
func (e *Explainer) Labels(det detection.Detector, requested []string) ([]string, error) {
	if requested != nil {
		return requested, nil
	}
	if own := detection.LabelsFor(det, nil); own != nil {
		return own, nil
	}
	if path := e.cfg.Model.LabelsFile; path != "" {
		labels, err := detection.LoadLabels(config.ExpandPath(path))
		if err != nil {
			return nil, err
		}
		return labels, nil
	}
	return detection.COCOLabels, nil
}

func (e *Explainer) renderOptions() (render.Options, error) {
	opts := render.DefaultOptions()
	cm, err := render.ColormapByName(e.cfg.Render.Colormap)
	if err != nil {
		return opts, err
	}
	opts.Colormap = cm
	opts.Alpha = e.cfg.Render.Alpha
	if c := e.cfg.Render.BoxColor; c != "" {
		box, err := imaging.ParseHexColor(c)
		if err != nil {
			return opts, fmt.Errorf("invalid box color: %w", err)
		}
		opts.BoxColor = box
	}
	return opts, nil
}
