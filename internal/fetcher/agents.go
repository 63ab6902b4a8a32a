package fetcher

import "sync/atomic"

// agentRotor hands out user agent strings round-robin. Every variant
// identifies the crawler truthfully; rotation only varies the suffix so
// per-agent rate limiting on the far side spreads out.
type agentRotor struct {
	agents []string
	next   atomic.Uint64
}

func newAgentRotor(base string) *agentRotor {
	return &agentRotor{
		agents: []string{
			base,
			base + " fetcher",
			base + " batch",
		},
	}
}

func (r *agentRotor) Next() string {
	n := r.next.Add(1) - 1
	return r.agents[n%uint64(len(r.agents))]
}
