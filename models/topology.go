package models

// TopologyProfile captures what the live cluster looks like at render
// time. It is recomputed on every render and never cached: it reflects
// cluster state, not user intent.
type TopologyProfile struct {
	NodeCount int
	Zones     []string

	// SpreadEnabled is true only when the cluster type supports zone
	// spreading, at least two nodes were observed, and at least one node
	// carries a zone label. Anything else falls back to no constraint.
	SpreadEnabled bool
}
