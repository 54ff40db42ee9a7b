package sampler

import (
	"hash/fnv"
	"math/rand"
)

// Stream is a splittable random source. Every sampling decision of a
// generation step (focus, species, position) and every graph in a batch
// derives its own child stream, so results are reproducible bit for bit from
// a single root seed no matter how the work is ordered.
type Stream struct {
	seed uint64
}

// NewStream roots a stream hierarchy at the given seed.
func NewStream(seed uint64) Stream {
	return Stream{seed: splitmix64(seed)}
}

// Child derives an independent stream named by a label.
func (s Stream) Child(label string) Stream {
	h := fnv.New64a()
	h.Write([]byte(label))
	return Stream{seed: splitmix64(s.seed ^ h.Sum64())}
}

// ChildIndex derives an independent stream for a positional index, such as a
// graph's slot in a batch.
func (s Stream) ChildIndex(i int) Stream {
	return Stream{seed: splitmix64(s.seed ^ (0x9E3779B97F4A7C15 * uint64(i+1)))}
}

// Rand materializes the stream as a standard library generator. Each call
// returns a fresh generator starting from the stream's fixed state.
func (s Stream) Rand() *rand.Rand {
	return rand.New(rand.NewSource(int64(s.seed)))
}

// splitmix64 advances the SplitMix64 state and returns its output mix.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
