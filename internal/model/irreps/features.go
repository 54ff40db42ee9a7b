package irreps

import (
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// NodeFeatures holds one equivariant feature vector per node: Channels
// coefficient sets, each spanning degrees 0..LMax. Layout is
// Data[node][channel][coeff] flattened row-major, so a single node's block
// is a contiguous Channels·Dim(LMax) slice.
type NodeFeatures struct {
	LMax     int
	Channels int
	NumNodes int
	Data     []float64
}

// NewNodeFeatures allocates a zeroed feature container.
func NewNodeFeatures(numNodes, channels, lmax int) *NodeFeatures {
	return &NodeFeatures{
		LMax:     lmax,
		Channels: channels,
		NumNodes: numNodes,
		Data:     make([]float64, numNodes*channels*Dim(lmax)),
	}
}

// Node returns the mutable coefficient block of one node, laid out as
// [channel][coeff] flattened.
func (f *NodeFeatures) Node(i int) []float64 {
	stride := f.Channels * Dim(f.LMax)
	return f.Data[i*stride : (i+1)*stride]
}

// At returns the coefficient of (node, channel, flattened degree/order index).
func (f *NodeFeatures) At(node, channel, idx int) float64 {
	return f.Data[f.offset(node, channel)+idx]
}

// Set writes the coefficient of (node, channel, flattened degree/order index).
func (f *NodeFeatures) Set(node, channel, idx int, v float64) {
	f.Data[f.offset(node, channel)+idx] = v
}

// Add accumulates into the coefficient of (node, channel, index).
func (f *NodeFeatures) Add(node, channel, idx int, v float64) {
	f.Data[f.offset(node, channel)+idx] += v
}

func (f *NodeFeatures) offset(node, channel int) int {
	return (node*f.Channels + channel) * Dim(f.LMax)
}

// Scalars extracts the degree-0 (rotation-invariant) channel values of one
// node as a fresh slice of length Channels. The focus and species heads
// consume only these.
func (f *NodeFeatures) Scalars(node int) []float64 {
	dim := Dim(f.LMax)
	out := make([]float64, f.Channels)
	base := node * f.Channels * dim
	for c := 0; c < f.Channels; c++ {
		out[c] = f.Data[base+c*dim]
	}
	return out
}

// CheckShape verifies the container against an expected geometry at a
// component boundary.
func (f *NodeFeatures) CheckShape(numNodes, channels, lmax int) error {
	if f.NumNodes != numNodes || f.Channels != channels || f.LMax != lmax {
		return errors.Newf(errors.CodeModelShapeMismatch,
			"node features are (%d nodes, %d channels, lmax %d), want (%d, %d, %d)",
			f.NumNodes, f.Channels, f.LMax, numNodes, channels, lmax)
	}
	if want := numNodes * channels * Dim(lmax); len(f.Data) != want {
		return errors.Newf(errors.CodeModelShapeMismatch,
			"node feature buffer holds %d values, want %d", len(f.Data), want)
	}
	return nil
}
