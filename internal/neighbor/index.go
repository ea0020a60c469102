// Package neighbor maintains the per-iteration adjacency index.
//
// The index is the system's principal performance-critical structure: it is
// rebuilt once per iteration from the engine's adjacency pairs (dissolve
// invalidates polygon ids and can expose new shared boundaries) and answers
// every neighbor lookup in O(1) amortized, so scoring never falls back to a
// geometric scan.
package neighbor

import (
	"sort"

	"github.com/sells-group/corine-cli/internal/model"
)

// Index maps polygon id to its ordered neighbor ids. Symmetric by
// construction; self-edges are dropped.
type Index struct {
	adj map[int][]int
}

// Build constructs the index from undirected adjacency pairs. Duplicate pairs
// collapse; neighbor lists come out sorted by id so iteration order is
// deterministic.
func Build(pairs []model.AdjacencyPair) *Index {
	sets := make(map[int]map[int]struct{}, len(pairs))
	add := func(a, b int) {
		s, ok := sets[a]
		if !ok {
			s = make(map[int]struct{})
			sets[a] = s
		}
		s[b] = struct{}{}
	}
	for _, p := range pairs {
		if p.A == p.B {
			continue
		}
		add(p.A, p.B)
		add(p.B, p.A)
	}

	adj := make(map[int][]int, len(sets))
	for id, s := range sets {
		ids := make([]int, 0, len(s))
		for n := range s {
			ids = append(ids, n)
		}
		sort.Ints(ids)
		adj[id] = ids
	}
	return &Index{adj: adj}
}

// Neighbors returns the sorted neighbor ids of a polygon. A polygon with no
// recorded adjacency (an island) yields an empty slice.
func (ix *Index) Neighbors(id int) []int {
	return ix.adj[id]
}

// Degree returns the number of neighbors of a polygon.
func (ix *Index) Degree(id int) int {
	return len(ix.adj[id])
}

// Len returns the number of polygons with at least one neighbor.
func (ix *Index) Len() int {
	return len(ix.adj)
}
