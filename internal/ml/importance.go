package ml

import (
	"sort"

	"forest-cover/internal/features"
)

// FeatureStats is the split-count importance of one vector column.
type FeatureStats struct {
	Name            string  `json:"name"`
	Index           int     `json:"index"`
	UsageCount      int     `json:"usage_count"`
	ImportanceScore float64 `json:"importance_score"` // share of all splits
}

// ImportanceReporter is implemented by models that can rank their inputs.
type ImportanceReporter interface {
	FeatureImportance() []FeatureStats
}

// FeatureImportance counts how often each column is split on across the
// ensemble. Columns never used are omitted. Sorted by count, then index.
func (e *Ensemble) FeatureImportance() []FeatureStats {
	var counts [features.VectorLen]int
	total := 0
	for _, t := range e.trees {
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			counts[n.Feature]++
			total++
		}
	}

	stats := make([]FeatureStats, 0, features.VectorLen)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		stats = append(stats, FeatureStats{
			Name:            features.Columns[i],
			Index:           i,
			UsageCount:      c,
			ImportanceScore: float64(c) / float64(total),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].UsageCount > stats[j].UsageCount
	})
	return stats
}

// TopFeatures returns the first n entries of a ranking. n is clamped to
// [0, len(stats)].
func TopFeatures(stats []FeatureStats, n int) []FeatureStats {
	n = max(0, min(n, len(stats)))
	return stats[:n:n]
}

// FeatureImportance returns the loaded model's importance ranking, if the
// model can produce one.
func (g *Gateway) FeatureImportance() ([]FeatureStats, bool) {
	if !g.Ready() {
		return nil, false
	}
	m := g.model
	if u, ok := m.(interface{ Unwrap() Model }); ok {
		m = u.Unwrap()
	}
	r, ok := m.(ImportanceReporter)
	if !ok {
		return nil, false
	}
	return r.FeatureImportance(), true
}
