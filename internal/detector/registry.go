package detector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/raysh454/tagscope/internal/logging"
)

// Registry holds the detector set for an engine. Detectors can be enabled
// and disabled at runtime; iteration order is priority descending with ties
// broken by registration order.
type Registry struct {
	mu      sync.RWMutex
	logger  logging.Logger
	order   []string
	entries map[string]*registryEntry
}

type registryEntry struct {
	det     Detector
	enabled bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewStdoutLogger("DetectorRegistry")
	}
	return &Registry{
		logger:  logger.With(logging.Field{Key: "component", Value: "DetectorRegistry"}),
		entries: make(map[string]*registryEntry),
	}
}

// NewDefaultRegistry creates a registry populated with the built-in
// detectors, all enabled.
func NewDefaultRegistry(logger logging.Logger) *Registry {
	r := NewRegistry(logger)
	for _, d := range []Detector{
		NewGTMDetector(),
		NewGA4Detector(),
		NewAdobeDetector(),
		NewSegmentDetector(),
		NewMetaDetector(),
		NewUnknownDetector(DefaultUnknownConfig()),
	} {
		// Built-in ids are distinct; Register cannot fail here.
		_ = r.Register(d)
	}
	return r
}

// Register adds a detector, enabled. Registering a duplicate id is an error.
func (r *Registry) Register(d Detector) error {
	if d == nil {
		return fmt.Errorf("registering detector: nil detector")
	}
	if d.ID() == "" {
		return fmt.Errorf("registering detector: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.ID()]; exists {
		return fmt.Errorf("registering detector %q: already registered", d.ID())
	}
	r.entries[d.ID()] = &registryEntry{det: d, enabled: true}
	r.order = append(r.order, d.ID())
	r.logger.Debug("registered detector",
		logging.Field{Key: "id", Value: d.ID()},
		logging.Field{Key: "priority", Value: d.Priority()})
	return nil
}

// Unregister removes a detector; it reports whether the id was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		return false
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Enable marks a detector runnable; it reports whether the id was present.
func (r *Registry) Enable(id string) bool { return r.setEnabled(id, true) }

// Disable excludes a detector from runs without unregistering it.
func (r *Registry) Disable(id string) bool { return r.setEnabled(id, false) }

func (r *Registry) setEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[id]
	if !exists {
		return false
	}
	e.enabled = enabled
	return true
}

// Get returns a registered detector by id.
func (r *Registry) Get(id string) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[id]
	if !exists {
		return nil, false
	}
	return e.det, true
}

// EnabledByPriority returns enabled detectors sorted by priority descending.
// The sort is stable so equal priorities keep registration order.
func (r *Registry) EnabledByPriority() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Detector, 0, len(r.order))
	for _, id := range r.order {
		if e := r.entries[id]; e != nil && e.enabled {
			out = append(out, e.det)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}
