package provider

import (
	"fmt"
	"sort"
)

// Traits describe a provider's position in the quality/speed/cost space.
// They are static deployment knowledge, registered alongside the adapter.
type Traits struct {
	// Quality and Speed are relative scores in (0, 1].
	Quality float64
	Speed   float64

	// Cost is the relative per-image cost; higher is pricier. Scoring uses
	// its inverse, normalized to the cheapest candidate, so cheap providers
	// rank higher.
	Cost float64

	// OpenSource marks open-weights models.
	OpenSource bool
}

// Weights scale the trait dimensions when computing fallback order.
type Weights struct {
	Quality float64
	Speed   float64
	Cost    float64
	Open    float64
}

// DefaultWeights balances quality, speed, and cost evenly with a small
// nudge toward open models.
func DefaultWeights() Weights {
	return Weights{Quality: 1, Speed: 1, Cost: 1, Open: 0.25}
}

// WeightsFromOptions derives scoring weights from the user preference
// flags carried in provider options. Each set flag boosts its dimension.
func WeightsFromOptions(options map[string]any) Weights {
	w := DefaultWeights()
	if boolOption(options, "prefer_quality", false) {
		w.Quality = 2.5
	}
	if boolOption(options, "prefer_speed", false) {
		w.Speed = 2.5
	}
	if boolOption(options, "prefer_cheap", false) {
		w.Cost = 2.5
	}
	if boolOption(options, "prefer_open", false) {
		w.Open = 1.5
	}
	return w
}

// score computes the weighted trait sum. The cost inverse is taken
// relative to minCost, the cheapest candidate under consideration, which
// keeps the cost term in (0, w.Cost] on the same scale as quality and
// speed.
func (w Weights) score(t Traits, minCost float64) float64 {
	s := w.Quality*t.Quality + w.Speed*t.Speed
	if t.Cost > 0 && minCost > 0 {
		s += w.Cost * (minCost / t.Cost)
	}
	if t.OpenSource {
		s += w.Open
	}
	return s
}

type registryEntry struct {
	adapter Adapter
	traits  Traits
}

// Registry holds the configured adapters in declaration order and computes
// the fallback order for a dispatch.
type Registry struct {
	entries []registryEntry
	byName  map[string]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds an adapter with its traits. Registering the same name
// twice replaces the earlier entry but keeps its position.
func (r *Registry) Register(adapter Adapter, traits Traits) {
	if idx, ok := r.byName[adapter.Name()]; ok {
		r.entries[idx] = registryEntry{adapter: adapter, traits: traits}
		return
	}
	r.byName[adapter.Name()] = len(r.entries)
	r.entries = append(r.entries, registryEntry{adapter: adapter, traits: traits})
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return r.entries[idx].adapter, nil
}

// Names returns the registered provider names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.adapter.Name()
	}
	return names
}

// FallbackOrder returns the adapters to try for a dispatch. The primary
// provider always comes first; the rest are sorted by weighted trait score,
// descending, with ties broken by declaration order.
func (r *Registry) FallbackOrder(primary string, weights Weights) []Adapter {
	rest := make([]registryEntry, 0, len(r.entries))
	ordered := make([]Adapter, 0, len(r.entries))

	for _, e := range r.entries {
		if e.adapter.Name() == primary {
			ordered = append(ordered, e.adapter)
			continue
		}
		rest = append(rest, e)
	}

	var minCost float64
	for _, e := range rest {
		if e.traits.Cost > 0 && (minCost == 0 || e.traits.Cost < minCost) {
			minCost = e.traits.Cost
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return weights.score(rest[i].traits, minCost) > weights.score(rest[j].traits, minCost)
	})

	for _, e := range rest {
		ordered = append(ordered, e.adapter)
	}
	return ordered
}
