package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// Registry wraps an [interval.Set] to implement region
// registry semantics. It is used twice by [Engine]: once for
// persistent_mappings, once for loggable_regions.
type Registry struct {
	set *interval.Set[struct{}]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{set: interval.New[struct{}]()}
}

// Register adds region to the registry, merging with any overlapping or
// touching regions so the registry never holds adjacent fragments.
func (r *Registry) Register(region interval.Interval) {
	if region.Size == 0 {
		return // zero-size inputs are coerced to no-op
	}

	r.set.InsertMerging(region, struct{}{})
}

// Deregister subtracts region from the registry, splitting any entry that
// only partially overlaps it.
func (r *Registry) Deregister(region interval.Interval) {
	if region.Size == 0 {
		return
	}

	r.set.RemoveRange(region)
}

// Classify reports how region relates to the registry's contents.
func (r *Registry) Classify(region interval.Interval) interval.Classification {
	if region.Size == 0 {
		return interval.NotPresent
	}

	return r.set.Classify(region)
}

// ContainsAny reports whether region overlaps anything registered.
func (r *Registry) ContainsAny(region interval.Interval) bool {
	return r.Classify(region) != interval.NotPresent
}

// Regions returns a copy of every registered region, in address order.
func (r *Registry) Regions() []interval.Interval {
	entries := r.set.Entries()
	out := make([]interval.Interval, len(entries))

	for i, e := range entries {
		out[i] = e.Interval
	}

	return out
}

// Len returns the number of registered (already-merged) regions.
func (r *Registry) Len() int {
	return r.set.Len()
}
