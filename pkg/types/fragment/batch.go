package fragment

import (
	"fmt"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// Batch is a fixed-capacity concatenation of fragments. Node and edge arrays
// of the member graphs are laid out back to back; NodeGraph gives each node's
// graph membership so that per-graph aggregations (segment sums, segment
// softmaxes) run vectorized without ragged structures.
//
// Invariants, enforced by Validate:
//
//   - node indices belonging to one graph are contiguous, graphs in order;
//   - every edge connects two nodes of the same graph;
//   - every species index is inside [0, NumElements);
//   - node/edge/graph counts never exceed the pad capacities.
//
// The first node of each graph, when teacher-forced, is that graph's focus
// node (see Fragment).
type Batch struct {
	// Species and Positions are the concatenated per-node arrays.
	Species   []int
	Positions []Vec3

	// Senders and Receivers are the concatenated edge arrays, with node
	// indices referring to the concatenated layout.
	Senders   []int
	Receivers []int

	// NodeGraph maps each node index to the index of the graph it belongs to.
	NodeGraph []int

	// NNode and NEdge hold the per-graph node and edge counts.
	NNode []int
	NEdge []int

	// Globals holds one label per graph.
	Globals []Globals

	// NumElements is the vocabulary size species indices are checked against.
	NumElements int

	// MaxNodes, MaxEdges, and MaxGraphs are the pad capacities the batch was
	// built for. Zero means "unbounded" (used by small in-test batches).
	MaxNodes  int
	MaxEdges  int
	MaxGraphs int
}

// NumGraphs returns the number of member graphs.
func (b *Batch) NumGraphs() int { return len(b.NNode) }

// NumNodes returns the total node count across all graphs.
func (b *Batch) NumNodes() int { return len(b.Species) }

// NumEdges returns the total edge count across all graphs.
func (b *Batch) NumEdges() int { return len(b.Senders) }

// FirstNodeIndices returns the concatenated index of each graph's node 0,
// i.e. the teacher-forced focus node of every graph.
func (b *Batch) FirstNodeIndices() []int {
	firsts := make([]int, len(b.NNode))
	offset := 0
	for g, n := range b.NNode {
		firsts[g] = offset
		offset += n
	}
	return firsts
}

// NodeRange returns the half-open concatenated index range [start, end) of
// graph g's nodes.
func (b *Batch) NodeRange(g int) (start, end int) {
	for i := 0; i < g; i++ {
		start += b.NNode[i]
	}
	return start, start + b.NNode[g]
}

// NewBatch concatenates fragments into a Batch and validates the result.
// numElements is the vocabulary size; maxNodes/maxEdges/maxGraphs are the
// pad capacities (zero disables the corresponding check).
func NewBatch(fragments []*Fragment, numElements, maxNodes, maxEdges, maxGraphs int) (*Batch, error) {
	b := &Batch{
		NumElements: numElements,
		MaxNodes:    maxNodes,
		MaxEdges:    maxEdges,
		MaxGraphs:   maxGraphs,
	}
	offset := 0
	for g, f := range fragments {
		b.Species = append(b.Species, f.Species...)
		b.Positions = append(b.Positions, f.Positions...)
		for i := range f.Senders {
			b.Senders = append(b.Senders, f.Senders[i]+offset)
			b.Receivers = append(b.Receivers, f.Receivers[i]+offset)
		}
		for range f.Species {
			b.NodeGraph = append(b.NodeGraph, g)
		}
		b.NNode = append(b.NNode, f.NumNodes())
		b.NEdge = append(b.NEdge, f.NumEdges())
		b.Globals = append(b.Globals, f.Globals)
		offset += f.NumNodes()
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks every structural invariant of the batch. Any violation is
// a fatal precondition error (GRAPH_* code); the model core must never see
// an invalid batch.
func (b *Batch) Validate() error {
	numNodes := len(b.Species)
	if len(b.Positions) != numNodes || len(b.NodeGraph) != numNodes {
		return errors.New(errors.CodeGraphMalformed, "per-node arrays have mismatched lengths").
			WithDetail(fmt.Sprintf("species=%d positions=%d node_graph=%d",
				numNodes, len(b.Positions), len(b.NodeGraph)))
	}
	if len(b.Senders) != len(b.Receivers) {
		return errors.New(errors.CodeGraphMalformed, "sender and receiver arrays have mismatched lengths").
			WithDetail(fmt.Sprintf("senders=%d receivers=%d", len(b.Senders), len(b.Receivers)))
	}
	numGraphs := len(b.NNode)
	if len(b.NEdge) != numGraphs || len(b.Globals) != numGraphs {
		return errors.New(errors.CodeGraphMalformed, "per-graph arrays have mismatched lengths").
			WithDetail(fmt.Sprintf("n_node=%d n_edge=%d globals=%d", numGraphs, len(b.NEdge), len(b.Globals)))
	}

	// Capacity checks before anything indexed, so oversize batches fail fast.
	if b.MaxGraphs > 0 && numGraphs > b.MaxGraphs {
		return errors.Newf(errors.CodeGraphCapacityExceeded, "batch holds %d graphs, capacity is %d", numGraphs, b.MaxGraphs)
	}
	if b.MaxNodes > 0 && numNodes > b.MaxNodes {
		return errors.Newf(errors.CodeGraphCapacityExceeded, "batch holds %d nodes, capacity is %d", numNodes, b.MaxNodes)
	}
	if b.MaxEdges > 0 && len(b.Senders) > b.MaxEdges {
		return errors.Newf(errors.CodeGraphCapacityExceeded, "batch holds %d edges, capacity is %d", len(b.Senders), b.MaxEdges)
	}

	// Node counts must sum to the concatenated length, and NodeGraph must be
	// the contiguous expansion of NNode.
	sum := 0
	node := 0
	for g, n := range b.NNode {
		if n < 0 {
			return errors.Newf(errors.CodeGraphMalformed, "graph %d has negative node count %d", g, n)
		}
		for i := 0; i < n; i++ {
			if node >= numNodes || b.NodeGraph[node] != g {
				return errors.New(errors.CodeGraphMalformed, "node ranges not contiguous per graph").
					WithDetail(fmt.Sprintf("node %d expected membership %d", node, g))
			}
			node++
		}
		sum += n
	}
	if sum != numNodes {
		return errors.Newf(errors.CodeGraphMalformed, "n_node sums to %d but batch holds %d nodes", sum, numNodes)
	}

	edgeSum := 0
	for _, n := range b.NEdge {
		edgeSum += n
	}
	if edgeSum != len(b.Senders) {
		return errors.Newf(errors.CodeGraphMalformed, "n_edge sums to %d but batch holds %d edges", edgeSum, len(b.Senders))
	}

	for i, s := range b.Species {
		if s < 0 || s >= b.NumElements {
			return errors.Newf(errors.CodeGraphSpeciesOutOfVocab, "node %d has species %d, vocabulary size is %d", i, s, b.NumElements)
		}
	}
	for g := range b.Globals {
		if b.Globals[g].Stop {
			continue
		}
		if ts := b.Globals[g].TargetSpecies; ts < 0 || ts >= b.NumElements {
			return errors.Newf(errors.CodeGraphSpeciesOutOfVocab, "graph %d has target species %d, vocabulary size is %d", g, ts, b.NumElements)
		}
	}

	for i := range b.Senders {
		s, r := b.Senders[i], b.Receivers[i]
		if s < 0 || s >= numNodes || r < 0 || r >= numNodes {
			return errors.Newf(errors.CodeGraphEdgeOutOfRange, "edge %d (%d→%d) has a dangling endpoint", i, s, r)
		}
		if b.NodeGraph[s] != b.NodeGraph[r] {
			return errors.Newf(errors.CodeGraphEdgeOutOfRange, "edge %d (%d→%d) crosses graph boundary", i, s, r)
		}
	}
	return nil
}
