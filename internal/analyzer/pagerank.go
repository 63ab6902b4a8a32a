package analyzer

import "math"

// PageRank parameters.
const (
	dampingFactor  = 0.85
	convergenceEps = 1e-6
	maxIterations  = 100
)

// pagerank runs weighted power iteration over the graph. Sink mass (nodes
// with no outgoing edges) is redistributed uniformly each step, so ranks
// always sum to 1.
func pagerank(g *graph) []float64 {
	n := g.nodes
	if n == 0 {
		return nil
	}

	ranks := make([]float64, n)
	next := make([]float64, n)

	initial := 1.0 / float64(n)
	for i := range ranks {
		ranks[i] = initial
	}

	base := (1 - dampingFactor) / float64(n)

	for iter := 0; iter < maxIterations; iter++ {
		var sinkMass float64

		for i := range next {
			next[i] = 0
		}

		for from := range g.out {
			if g.outW[from] == 0 {
				sinkMass += ranks[from]
				continue
			}

			share := ranks[from] / g.outW[from]
			for _, e := range g.out[from] {
				next[e.to] += share * e.weight
			}
		}

		sinkShare := sinkMass / float64(n)

		var delta float64

		for i := range next {
			next[i] = base + dampingFactor*(next[i]+sinkShare)

			if d := math.Abs(next[i] - ranks[i]); d > delta {
				delta = d
			}
		}

		ranks, next = next, ranks

		if delta < convergenceEps {
			break
		}
	}

	return ranks
}
