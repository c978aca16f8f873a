package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by Registry.New for a name nothing registered.
var ErrUnknownBackend = errors.New("unknown detector backend")

// Detector finds objects in an image.
type Detector interface {
	// Name returns the backend identifier (e.g., "contour", "onnx").
	Name() string

	// Detect runs the model on img and returns every detection it reports.
	// Implementations must be safe for concurrent use.
	Detect(ctx context.Context, img image.Image) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Labeler is implemented by detectors that know the names of their class ids.
type Labeler interface {
	Labels() []string
}

// LabelsFor returns det's own labels when it has any, else fallback.
func LabelsFor(det Detector, fallback []string) []string {
	if l, ok := det.(Labeler); ok {
		if labels := l.Labels(); len(labels) > 0 {
			return labels
		}
	}
	return fallback
}

// Factory builds a detector on demand.
type Factory func(ctx context.Context) (Detector, error)

// Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = f
}

// New builds the detector registered under name.
func (r *Registry) New(ctx context.Context, name string) (Detector, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, r.Names())
	}
	return f(ctx)
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
