package clustering

import (
	"container/heap"
	"fmt"
)

// node is one active cluster during agglomerative merging: a set of
// original member indices plus a running centroid sum for cheap centroid
// recomputation on merge.
type node struct {
	id           string
	members      []int
	centroidSum  []float64
	generation   int // bumped whenever this node is replaced by a merge result
}

// pairStat is the average-linkage aggregate between two active clusters,
// derived purely from the original sparse edge list: sum of retained edge
// weights between their members and how many such edges exist. Average
// linkage is sum/count; clusters with zero connecting edges are never
// merge candidates.
type pairStat struct {
	sum   float64
	count int
}

// heapItem is one candidate merge in the max-heap, tagged with the
// generation of both endpoints at the time it was pushed so a merge that
// invalidates one side can be detected and skipped lazily instead of
// requiring an eager removal from the heap.
type heapItem struct {
	simAvg     float64
	idA, idB   string
	genA, genB int
	sizeA, sizeB int
}

type mergeHeap []*heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].simAvg != h[j].simAvg {
		return h[i].simAvg > h[j].simAvg
	}
	// Tie-break: prefer merging the smaller combined size, then lexicographic pair id.
	si, sj := h[i].sizeA+h[i].sizeB, h[j].sizeA+h[j].sizeB
	if si != sj {
		return si < sj
	}
	return pairKey(h[i].idA, h[i].idB) < pairKey(h[j].idA, h[j].idB)
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*heapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// mergeAgglomerative runs average-linkage agglomerative merging using a
// max-heap keyed by inter-cluster similarity, recomputing only the edges
// affected by each merge rather than a naive O(N²) recursive merge loop.
// It returns the final set of active nodes (some singleton, most merged).
func mergeAgglomerative(members []Member, edges []edge, p Params) []*node {
	nodes := make(map[string]*node, len(members))
	for i, m := range members {
		id := fmt.Sprintf("c%d", i)
		nodes[id] = &node{id: id, members: []int{i}, centroidSum: toFloat64(m.Embedding)}
	}

	// pairs[a][b] holds the average-linkage aggregate between active
	// clusters a and b, seeded directly from the sparse edge list.
	pairs := make(map[string]map[string]*pairStat)
	addPair := func(a, b string, sim float64) {
		if a == b {
			return
		}
		if pairs[a] == nil {
			pairs[a] = make(map[string]*pairStat)
		}
		if pairs[a][b] == nil {
			pairs[a][b] = &pairStat{}
		}
		pairs[a][b].sum += sim
		pairs[a][b].count++
	}
	for _, e := range edges {
		ida, idb := fmt.Sprintf("c%d", e.a), fmt.Sprintf("c%d", e.b)
		addPair(ida, idb, e.similarity)
		addPair(idb, ida, e.similarity)
	}

	h := &mergeHeap{}
	heap.Init(h)
	pushed := make(map[string]bool)
	pushCandidate := func(a, b string) {
		key := pairKey(a, b)
		if pushed[key] {
			return
		}
		stat, ok := pairs[a][b]
		if !ok || stat.count == 0 {
			return
		}
		avg := stat.sum / float64(stat.count)
		if avg < p.SimilarityThreshold {
			return
		}
		na, nb := nodes[a], nodes[b]
		heap.Push(h, &heapItem{
			simAvg: avg, idA: a, idB: b,
			genA: na.generation, genB: nb.generation,
			sizeA: len(na.members), sizeB: len(nb.members),
		})
		pushed[key] = true
	}

	for a, neighbors := range pairs {
		for b := range neighbors {
			pushCandidate(a, b)
		}
	}

	nextID := len(members)
	maxClusters := p.MaxClusters
	if maxClusters <= 0 {
		maxClusters = len(members)
	}

	for h.Len() > 0 && len(nodes) > maxClusters {
		top := heap.Pop(h).(*heapItem)
		na, okA := nodes[top.idA]
		nb, okB := nodes[top.idB]
		if !okA || !okB || na.generation != top.genA || nb.generation != top.genB {
			continue // stale entry from an earlier merge; skip lazily
		}
		if len(na.members)+len(nb.members) > p.MaxClusterSize {
			continue
		}

		merged := mergeNodes(na, nb, nextID)
		nextID++

		delete(nodes, na.id)
		delete(nodes, nb.id)
		nodes[merged.id] = merged

		mergePairStats(pairs, na.id, nb.id, merged.id)

		for other := range pairs[merged.id] {
			if other == merged.id {
				continue
			}
			pushed[pairKey(merged.id, other)] = false
			pushCandidate(merged.id, other)
		}
	}

	out := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

func mergeNodes(a, b *node, nextID int) *node {
	members := make([]int, 0, len(a.members)+len(b.members))
	members = append(members, a.members...)
	members = append(members, b.members...)

	centroid := make([]float64, len(a.centroidSum))
	for i := range centroid {
		centroid[i] = a.centroidSum[i] + b.centroidSum[i]
	}

	return &node{
		id:          fmt.Sprintf("c%d", nextID),
		members:     members,
		centroidSum: centroid,
		generation:  a.generation + b.generation + 1,
	}
}

// mergePairStats folds the average-linkage aggregates of the two merged
// clusters into their combined replacement, for every other still-active
// cluster they were connected to. This is the "recompute only affected
// edges" step: clusters unrelated to a or b are untouched.
func mergePairStats(pairs map[string]map[string]*pairStat, a, b, merged string) {
	combined := make(map[string]*pairStat)
	for _, from := range []string{a, b} {
		for other, stat := range pairs[from] {
			if other == a || other == b {
				continue
			}
			if combined[other] == nil {
				combined[other] = &pairStat{}
			}
			combined[other].sum += stat.sum
			combined[other].count += stat.count
		}
	}

	delete(pairs, a)
	delete(pairs, b)
	for other := range pairs {
		delete(pairs[other], a)
		delete(pairs[other], b)
	}

	pairs[merged] = combined
	for other, stat := range combined {
		if pairs[other] == nil {
			pairs[other] = make(map[string]*pairStat)
		}
		pairs[other][merged] = stat
	}
}
