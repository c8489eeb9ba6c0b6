// Package stats reduces entity populations into grouped counts and sums for
// dashboards and reports. The aggregator operates on a declared projection of
// each entity, never on raw entity structure, so heterogeneous shapes across
// products aggregate uniformly.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/cindralabs/riskcore/api/schemas"
)

// Projection is the aggregation view of one entity: its grouping dimension
// values plus the numeric fields to sum and average.
type Projection struct {
	Dimensions map[string]string
	Values     map[string]float64
}

// Projector derives a Projection from an entity snapshot. Implementations
// must not mutate the entity.
type Projector func(e *schemas.Entity) Projection

// Dimension names understood by the default projector.
const (
	DimSeverity   = "severity"
	DimStatus     = "status"
	DimClass      = "class"
	DimCategory   = "category"
	DimTimeBucket = "time_bucket"
)

// DefaultProjector projects the standard reporting dimensions (severity,
// lifecycle status, entity class, category, creation-day bucket) and the
// score as a numeric field.
func DefaultProjector(e *schemas.Entity) Projection {
	p := Projection{
		Dimensions: map[string]string{
			DimSeverity:   string(e.Severity),
			DimStatus:     string(e.Lifecycle.CurrentState),
			DimClass:      string(e.Class),
			DimCategory:   e.Category,
			DimTimeBucket: e.CreatedAt.UTC().Format(time.DateOnly),
		},
		Values: map[string]float64{},
	}
	if e.Score != nil {
		p.Values["score"] = float64(e.Score.Score)
	}
	return p
}

// Group is one aggregation bucket.
type Group struct {
	// Key holds the dimension values shared by every entity in the bucket.
	Key map[string]string `json:"key"`

	// Count is the number of entities in the bucket.
	Count int `json:"count"`

	// Sums holds per-field totals; Averages the corresponding means over the
	// entities that carried the field.
	Sums     map[string]float64 `json:"sums,omitempty"`
	Averages map[string]float64 `json:"averages,omitempty"`
}

// FacetedCounts is the aggregation result: one group per distinct dimension
// combination, ordered deterministically by key.
type FacetedCounts struct {
	GroupBy []string `json:"group_by"`
	Total   int      `json:"total"`
	Groups  []Group  `json:"groups"`
}

// Get returns the group matching the given dimension values, if present.
func (f FacetedCounts) Get(key map[string]string) (Group, bool) {
	want := compositeKey(f.GroupBy, key)
	for _, g := range f.Groups {
		if compositeKey(f.GroupBy, g.Key) == want {
			return g, true
		}
	}
	return Group{}, false
}

// Aggregate groups the entities by the requested dimensions and emits counts,
// sums and averages per group. It is a pure reducer: inputs are never
// mutated, so it is safe to run concurrently over disjoint snapshots.
func Aggregate(entities []*schemas.Entity, groupBy []string, project Projector) FacetedCounts {
	if project == nil {
		project = DefaultProjector
	}

	type bucket struct {
		key    map[string]string
		count  int
		sums   map[string]float64
		counts map[string]int
	}
	buckets := make(map[string]*bucket)

	for _, e := range entities {
		if e == nil {
			continue
		}
		p := project(e)

		key := make(map[string]string, len(groupBy))
		for _, dim := range groupBy {
			key[dim] = p.Dimensions[dim]
		}

		ck := compositeKey(groupBy, key)
		b, ok := buckets[ck]
		if !ok {
			b = &bucket{key: key, sums: map[string]float64{}, counts: map[string]int{}}
			buckets[ck] = b
		}
		b.count++
		for field, v := range p.Values {
			b.sums[field] += v
			b.counts[field]++
		}
	}

	keys := make([]string, 0, len(buckets))
	for ck := range buckets {
		keys = append(keys, ck)
	}
	sort.Strings(keys)

	out := FacetedCounts{GroupBy: append([]string(nil), groupBy...)}
	for _, ck := range keys {
		b := buckets[ck]
		g := Group{Key: b.key, Count: b.count}
		if len(b.sums) > 0 {
			g.Sums = b.sums
			g.Averages = make(map[string]float64, len(b.sums))
			for field, sum := range b.sums {
				g.Averages[field] = sum / float64(b.counts[field])
			}
		}
		out.Groups = append(out.Groups, g)
		out.Total += b.count
	}
	return out
}

func compositeKey(groupBy []string, key map[string]string) string {
	parts := make([]string, len(groupBy))
	for i, dim := range groupBy {
		parts[i] = dim + "=" + key[dim]
	}
	return strings.Join(parts, "\x1f")
}
