package analyzer

import (
	"net/url"
	"strings"
)

// Edge weights. Nofollow links still carry some signal, just much less.
const (
	followWeight   = 1.0
	nofollowWeight = 0.1
)

// edge is one weighted directed edge in the link graph.
type edge struct {
	to     int
	weight float64
}

// graph is the in-memory link graph built from stored links. Node indices
// are dense so the power iteration works on slices.
type graph struct {
	ids   map[string]int
	urls  []string
	out   [][]edge
	outW  []float64
	nodes int
}

func newGraph() *graph {
	return &graph{ids: make(map[string]int)}
}

func (g *graph) node(pageURL string) int {
	if id, ok := g.ids[pageURL]; ok {
		return id
	}

	id := g.nodes
	g.ids[pageURL] = id
	g.urls = append(g.urls, pageURL)
	g.out = append(g.out, nil)
	g.outW = append(g.outW, 0)
	g.nodes++

	return id
}

func (g *graph) addEdge(source, target string, nofollow bool) {
	weight := followWeight
	if nofollow {
		weight = nofollowWeight
	}

	from := g.node(source)
	to := g.node(target)

	g.out[from] = append(g.out[from], edge{to: to, weight: weight})
	g.outW[from] += weight
}

// domainOf returns the lowercased host of a URL, or "" when unparseable.
func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}
