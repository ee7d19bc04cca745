package ocr

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps model identifiers to lazily constructed, cached Model
// instances. One instance exists per identifier per process; construction
// never triggers Load — that is deferred to the first Predict.
type Registry struct {
	mu        sync.Mutex
	factories map[string]func() Model
	cache     map[string]Model
}

// NewRegistry returns a registry populated with the supported model
// variants, all backed by the given engine factory.
func NewRegistry(engines EngineFactory) *Registry {
	r := &Registry{
		factories: make(map[string]func() Model),
		cache:     make(map[string]Model),
	}
	r.Register(ModelGeneralOCR, func() Model { return newGeneralOCR(engines) })
	r.Register(ModelDocumentStructure, func() Model { return newDocumentStructure(engines) })
	r.Register(ModelVisionLanguage, func() Model { return newVisionLanguage(engines) })
	return r
}

// Register associates a model identifier with a construction function.
func (r *Registry) Register(name string, factory func() Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the cached instance for name, constructing one on first
// call. The check/construct/insert sequence is a single critical section
// so concurrent calls for the same name share one instance.
func (r *Registry) Get(name string) (Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, &UnknownModelError{Name: name, Available: r.namesLocked()}
	}
	if m, ok := r.cache[name]; ok {
		return m, nil
	}
	log.Info().Str("model", name).Msg("creating model instance")
	m := factory()
	r.cache[name] = m
	return m, nil
}
