package graph

import (
	"slices"
	"sort"
)

// Node is anything the DAG can hold. IDs must be unique within a graph.
type Node interface {
	ID() string
}

// Direction selects which adjacency a traversal follows.
//
// An edge source -> target means target depends on source. Out walks from a
// node to its dependents; In walks from a node to its dependencies.
type Direction int

const (
	// Out follows edges forward, towards dependents.
	Out Direction = iota
	// In follows edges backward, towards dependencies.
	In
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Dirty is a bitmask of derived caches that are stale.
type Dirty uint8

const (
	// DirtyTopo marks cached orders and ranks stale.
	DirtyTopo Dirty = 1 << iota
	// DirtyCycle marks the whole-graph acyclicity check stale.
	DirtyCycle
	// DirtyReach marks reachability closures and subgraphs stale.
	DirtyReach

	DirtyNone Dirty = 0
	DirtyAll        = DirtyTopo | DirtyCycle | DirtyReach
)

// DefaultWeight is the weight used by callers that do not care about edge cost.
const DefaultWeight = 1.0

// Rank is the scheduling rank derived for a node by the last order that
// included it.
type Rank struct {
	// Potential is the heaviest weighted path from the node to the end of its
	// downstream chain, floored by the node's own priority.
	Potential float64
	// Level is the longest hop distance from a source of the ordered scope.
	Level int
}

// RemovePolicy decides what happens to the neighbours of a removed node.
type RemovePolicy int

const (
	// Orphan detaches the node. Its dependents lose that dependency.
	Orphan RemovePolicy = iota
	// Contract reconnects every dependency of the node to every dependent,
	// with the two edge weights summed. Existing edges are left as they are.
	Contract
)

func (p RemovePolicy) String() string {
	if p == Contract {
		return "contract"
	}
	return "orphan"
}

// DAG is a directed acyclic graph with weighted edges, per-node base
// priorities and cached derived data (reachability, subgraphs, orders).
//
// Nodes are stored once, keyed by id; adjacency is kept as id sets so the
// graph never holds references between node values.
//
// DAG is not safe for concurrent use. The Scheduler serialises access.
type DAG[T Node] struct {
	nodes    map[string]T
	out      map[string]map[string]struct{}
	in       map[string]map[string]struct{}
	inDegree map[string]int
	weights  map[string]map[string]float64

	priorities map[string]float64
	ranks      map[string]Rank
	allRanks   map[string]Rank

	reach     [2]map[string]map[string]struct{}
	orders    map[string][]T
	subgraphs map[string]*DAG[T]
	acyclic   error

	dirty Dirty
}

// NewDAG creates an empty graph.
func NewDAG[T Node]() *DAG[T] {
	return &DAG[T]{
		nodes:      make(map[string]T),
		out:        make(map[string]map[string]struct{}),
		in:         make(map[string]map[string]struct{}),
		inDegree:   make(map[string]int),
		weights:    make(map[string]map[string]float64),
		priorities: make(map[string]float64),
		ranks:      make(map[string]Rank),
		reach: [2]map[string]map[string]struct{}{
			make(map[string]map[string]struct{}),
			make(map[string]map[string]struct{}),
		},
		orders:    make(map[string][]T),
		subgraphs: make(map[string]*DAG[T]),
	}
}

// AddNode registers n. It reports false, and changes nothing, when a node
// with the same id is already present.
func (d *DAG[T]) AddNode(n T) bool {
	id := n.ID()
	if _, ok := d.nodes[id]; ok {
		return false
	}
	d.nodes[id] = n
	d.out[id] = make(map[string]struct{})
	d.in[id] = make(map[string]struct{})
	d.inDegree[id] = 0
	d.markDirty(DirtyAll)
	return true
}

// AddEdge makes target depend on source. Both ids must be registered.
//
// Adding an edge that already exists is a no-op and keeps the old weight.
// An edge that would close a cycle, including a self edge, is rejected with
// a *CycleError before any state changes.
func (d *DAG[T]) AddEdge(source, target string, weight float64) error {
	if !d.Has(source) {
		return &NotFoundError{ID: source}
	}
	if !d.Has(target) {
		return &NotFoundError{ID: target}
	}
	if _, ok := d.out[source][target]; ok {
		return nil
	}
	if d.IsReachable(target, source) {
		return &CycleError{Source: source, Target: target}
	}
	d.link(source, target, weight)
	return nil
}

// Connect registers both node values when missing and adds the edge between
// them.
func (d *DAG[T]) Connect(source, target T, weight float64) error {
	d.AddNode(source)
	d.AddNode(target)
	return d.AddEdge(source.ID(), target.ID(), weight)
}

func (d *DAG[T]) link(source, target string, weight float64) {
	d.out[source][target] = struct{}{}
	d.in[target][source] = struct{}{}
	d.inDegree[target]++
	w, ok := d.weights[source]
	if !ok {
		w = make(map[string]float64)
		d.weights[source] = w
	}
	w[target] = weight
	d.markDirty(DirtyAll)
}

func (d *DAG[T]) unlink(source, target string) {
	delete(d.out[source], target)
	delete(d.in[target], source)
	d.inDegree[target]--
	delete(d.weights[source], target)
}

// RemoveNode deletes id and every edge touching it. With Contract, each
// dependency of id is connected to each dependent of id first.
func (d *DAG[T]) RemoveNode(id string, policy RemovePolicy) error {
	if !d.Has(id) {
		return &NotFoundError{ID: id}
	}

	if policy == Contract {
		for dep := range d.in[id] {
			for dependent := range d.out[id] {
				if _, ok := d.out[dep][dependent]; ok {
					continue
				}
				// dep already reaches dependent through id, so no cycle.
				d.link(dep, dependent, d.weights[dep][id]+d.weights[id][dependent])
			}
		}
	}

	for target := range d.out[id] {
		d.unlink(id, target)
	}
	for source := range d.in[id] {
		d.unlink(source, id)
	}

	delete(d.nodes, id)
	delete(d.out, id)
	delete(d.in, id)
	delete(d.inDegree, id)
	delete(d.weights, id)
	delete(d.priorities, id)
	delete(d.ranks, id)

	d.markDirty(DirtyAll)
	return nil
}

// RemoveEdge deletes the edge source -> target and reports whether it existed.
func (d *DAG[T]) RemoveEdge(source, target string) bool {
	if _, ok := d.out[source][target]; !ok {
		return false
	}
	d.unlink(source, target)
	d.markDirty(DirtyAll)
	return true
}

// SetWeight changes the weight of an existing edge.
func (d *DAG[T]) SetWeight(source, target string, weight float64) error {
	if _, ok := d.out[source][target]; !ok {
		return &NotFoundError{ID: source + " -> " + target}
	}
	d.weights[source][target] = weight
	d.markDirty(DirtyTopo | DirtyReach)
	return nil
}

// SetPriority sets the base priority of id.
func (d *DAG[T]) SetPriority(id string, p float64) error {
	if !d.Has(id) {
		return &NotFoundError{ID: id}
	}
	d.priorities[id] = p
	// Cached subgraphs carry their own copy of the priorities.
	d.markDirty(DirtyTopo | DirtyReach)
	return nil
}

// Priority returns the base priority of id, 0 when unset.
func (d *DAG[T]) Priority(id string) float64 {
	return d.priorities[id]
}

// Weight returns the weight of source -> target.
func (d *DAG[T]) Weight(source, target string) (float64, bool) {
	if _, ok := d.out[source][target]; !ok {
		return 0, false
	}
	return d.weights[source][target], true
}

// Node returns the value stored under id.
func (d *DAG[T]) Node(id string) (T, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Has reports whether id is registered.
func (d *DAG[T]) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (d *DAG[T]) Len() int {
	return len(d.nodes)
}

// Nodes returns every node sorted by id.
func (d *DAG[T]) Nodes() []T {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = d.nodes[id]
	}
	return out
}

// Edges returns the sorted neighbour ids of id in the given direction:
// dependents for Out, dependencies for In.
func (d *DAG[T]) Edges(id string, dir Direction) []string {
	set := d.adjacency(dir)[id]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// InDegree returns the number of dependencies of id.
func (d *DAG[T]) InDegree(id string) int {
	return d.inDegree[id]
}

// Rank returns the rank recorded for id by the most recent order containing it.
func (d *DAG[T]) Rank(id string) (Rank, bool) {
	r, ok := d.ranks[id]
	return r, ok
}

// IsDirty reports whether any of flags is set.
func (d *DAG[T]) IsDirty(flags Dirty) bool {
	return d.dirty&flags != 0
}

func (d *DAG[T]) adjacency(dir Direction) map[string]map[string]struct{} {
	if dir == In {
		return d.in
	}
	return d.out
}

// markDirty sets flags and drops the caches they cover right away, so a
// cache hit is always current.
func (d *DAG[T]) markDirty(flags Dirty) {
	d.dirty |= flags
	if flags&DirtyReach != 0 {
		clear(d.reach[Out])
		clear(d.reach[In])
		clear(d.subgraphs)
	}
	if flags&DirtyTopo != 0 {
		clear(d.orders)
		d.allRanks = nil
	}
	if flags&DirtyCycle != 0 {
		d.acyclic = nil
	}
}

func (d *DAG[T]) clearDirty(flags Dirty) {
	d.dirty &^= flags
}
