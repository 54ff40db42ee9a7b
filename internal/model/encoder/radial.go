package encoder

import "math"

// radialBasis expands an interatomic distance into NumRBF Gaussian features
// with centers spaced uniformly on [0, cutoff], modulated by a cosine cutoff
// envelope so that features vanish smoothly at the cutoff radius.
type radialBasis struct {
	centers []float64
	gamma   float64
	cutoff  float64
}

func newRadialBasis(numRBF int, cutoff float64) radialBasis {
	rb := radialBasis{
		centers: make([]float64, numRBF),
		cutoff:  cutoff,
	}
	step := cutoff / float64(numRBF-1)
	for i := range rb.centers {
		rb.centers[i] = step * float64(i)
	}
	rb.gamma = 1 / (2 * step * step)
	return rb
}

// expand evaluates the basis at distance r. Distances beyond the cutoff map
// to the zero vector.
func (rb radialBasis) expand(r float64) []float64 {
	out := make([]float64, len(rb.centers))
	if r >= rb.cutoff {
		return out
	}
	env := 0.5 * (math.Cos(math.Pi*r/rb.cutoff) + 1)
	for i, c := range rb.centers {
		d := r - c
		out[i] = env * math.Exp(-rb.gamma*d*d)
	}
	return out
}
