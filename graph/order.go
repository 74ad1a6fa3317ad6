package graph

import (
	"maps"
	"slices"
	"strings"

	"github.com/dshills/lazygraph-go/graph/queue"
)

// IsReachable reports whether target can be reached from source by following
// edges forward. A node always reaches itself.
func (d *DAG[T]) IsReachable(source, target string) bool {
	if source == target {
		return true
	}
	_, ok := d.closure(source, Out)[target]
	return ok
}

// Reachs returns the transitive closure of id in direction dir, excluding id
// itself: all dependents for Out, all dependencies for In.
func (d *DAG[T]) Reachs(id string, dir Direction) map[string]struct{} {
	return maps.Clone(d.closure(id, dir))
}

func (d *DAG[T]) closure(id string, dir Direction) map[string]struct{} {
	if d.IsDirty(DirtyReach) {
		clear(d.reach[Out])
		clear(d.reach[In])
		d.clearDirty(DirtyReach)
	}
	if set, ok := d.reach[dir][id]; ok {
		return set
	}

	adj := d.adjacency(dir)
	visited := make(map[string]struct{})
	stack := []string{id}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range adj[top] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	delete(visited, id)
	d.reach[dir][id] = visited
	return visited
}

// Subgraph returns the sub-DAG induced by id and its closure in direction
// dir, with the original weights and priorities. An unknown id yields an
// empty graph. The result is cached until reachability changes and must not
// be mutated by the caller.
func (d *DAG[T]) Subgraph(id string, dir Direction) *DAG[T] {
	if !d.Has(id) {
		return NewDAG[T]()
	}
	key := cacheKey(id, dir)
	if !d.IsDirty(DirtyReach) {
		if sub, ok := d.subgraphs[key]; ok {
			return sub
		}
	}

	scope := maps.Clone(d.closure(id, dir))
	scope[id] = struct{}{}

	sub := NewDAG[T]()
	for nid := range scope {
		sub.AddNode(d.nodes[nid])
		if p, ok := d.priorities[nid]; ok {
			sub.priorities[nid] = p
		}
	}
	for nid := range scope {
		for target := range d.out[nid] {
			if _, ok := scope[target]; ok {
				sub.link(nid, target, d.weights[nid][target])
			}
		}
	}

	d.subgraphs[key] = sub
	return sub
}

// Acyclic verifies the whole graph has no cycle. AddEdge already refuses
// cycles; this is an integrity check whose result is cached until the graph
// changes.
func (d *DAG[T]) Acyclic() error {
	if !d.IsDirty(DirtyCycle) {
		return d.acyclic
	}

	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(d.nodes))
	var found *CycleError

	var visit func(id string) bool
	visit = func(id string) bool {
		colour[id] = grey
		for next := range d.out[id] {
			switch colour[next] {
			case grey:
				found = &CycleError{Source: id, Target: next}
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}
		colour[id] = black
		return true
	}

	for _, n := range d.Nodes() {
		id := n.ID()
		if colour[id] == white && !visit(id) {
			break
		}
	}

	if found != nil {
		d.acyclic = found
	} else {
		d.acyclic = nil
	}
	d.clearDirty(DirtyCycle)
	return d.acyclic
}

// Order returns the nodes of Subgraph(id, dir) in dependency order, ranked by
// critical path. Dependencies always precede their dependents; among nodes
// that are ready at the same time, the one with the higher potential comes
// first, then the shallower level, then the smaller id.
//
// The result is cached until priorities, weights or topology change.
func (d *DAG[T]) Order(id string, dir Direction) ([]T, error) {
	if !d.Has(id) {
		return nil, &NotFoundError{ID: id}
	}
	key := cacheKey(id, dir)
	if cached, ok := d.orders[key]; ok {
		return slices.Clone(cached), nil
	}

	sub := d.Subgraph(id, dir)
	ordered, ranks, err := sub.rankedOrder()
	if err != nil {
		return nil, err
	}
	maps.Copy(d.ranks, ranks)
	d.orders[key] = ordered
	return slices.Clone(ordered), nil
}

// OrderAll orders the whole graph like Order.
func (d *DAG[T]) OrderAll() ([]T, error) {
	if cached, ok := d.orders[""]; ok {
		// A scoped Order may have overwritten ranks since.
		maps.Copy(d.ranks, d.allRanks)
		return slices.Clone(cached), nil
	}
	if err := d.Acyclic(); err != nil {
		return nil, err
	}
	ordered, ranks, err := d.rankedOrder()
	if err != nil {
		return nil, err
	}
	maps.Copy(d.ranks, ranks)
	d.allRanks = ranks
	d.orders[""] = ordered
	d.clearDirty(DirtyTopo)
	return slices.Clone(ordered), nil
}

// rankedOrder runs Kahn's algorithm over every node of d with a ready set
// ordered by (-potential, level, id).
func (d *DAG[T]) rankedOrder() ([]T, map[string]Rank, error) {
	potential := d.potentials()
	level := make(map[string]int, len(d.nodes))
	remaining := make(map[string]int, len(d.nodes))

	ready := queue.New(func(a, b string) int {
		if pa, pb := potential[a], potential[b]; pa != pb {
			if pa > pb {
				return -1
			}
			return 1
		}
		if la, lb := level[a], level[b]; la != lb {
			return la - lb
		}
		return strings.Compare(a, b)
	}, false)

	for id := range d.nodes {
		remaining[id] = d.inDegree[id]
		if remaining[id] == 0 {
			ready.Push(id)
		}
	}

	ordered := make([]T, 0, len(d.nodes))
	ranks := make(map[string]Rank, len(d.nodes))
	for ready.Len() > 0 {
		id, _ := ready.Poll()
		ordered = append(ordered, d.nodes[id])
		ranks[id] = Rank{Potential: potential[id], Level: level[id]}

		for next := range d.out[id] {
			if level[id]+1 > level[next] {
				level[next] = level[id] + 1
			}
			remaining[next]--
			if remaining[next] == 0 {
				ready.Push(next)
			}
		}
	}

	if len(ordered) != len(d.nodes) {
		for id, left := range remaining {
			if left > 0 {
				return nil, nil, &CycleError{Source: id, Target: id}
			}
		}
		return nil, nil, ErrCycle
	}
	return ordered, ranks, nil
}

// potentials computes, for every node, the maximum of its own priority and
// the heaviest path to any node downstream of it.
func (d *DAG[T]) potentials() map[string]float64 {
	memo := make(map[string]float64, len(d.nodes))
	onPath := make(map[string]bool)

	var visit func(id string) float64
	visit = func(id string) float64 {
		if p, ok := memo[id]; ok {
			return p
		}
		if onPath[id] {
			// Cycles are reported by the caller; stop the recursion here.
			return d.priorities[id]
		}
		onPath[id] = true
		best := d.priorities[id]
		for next := range d.out[id] {
			if p := visit(next) + d.weights[id][next]; p > best {
				best = p
			}
		}
		onPath[id] = false
		memo[id] = best
		return best
	}

	for id := range d.nodes {
		visit(id)
	}
	return memo
}

func cacheKey(id string, dir Direction) string {
	return dir.String() + ":" + id
}
