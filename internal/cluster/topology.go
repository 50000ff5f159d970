package cluster

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Topology is the single owner of the mutable cluster view shared between
// the fault scheduler and everything that needs a node list: the live node
// set plus the current partition state. All mutation goes through
// SetPartition/ClearPartition; readers get copies.
//
// Workload code never mutates a Topology. Only the fault scheduler does.
type Topology struct {
	mu    sync.RWMutex
	nodes []Node
	sideA []Node // nil when the cluster is healed
	sideB []Node
}

// NewTopology creates a topology over the given nodes with no partition.
func NewTopology(nodes []Node) *Topology {
	return &Topology{nodes: slices.Clone(nodes)}
}

// Nodes returns a copy of the full node set.
func (t *Topology) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.nodes)
}

// SetPartition records that the cluster is split into sides a and b.
func (t *Topology) SetPartition(a, b []Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sideA = slices.Clone(a)
	t.sideB = slices.Clone(b)
}

// ClearPartition records that full connectivity has been restored.
func (t *Topology) ClearPartition() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sideA = nil
	t.sideB = nil
}

// Partitioned reports whether a partition is currently recorded.
func (t *Topology) Partitioned() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sideA != nil
}

// Partition returns copies of the two sides of the current partition, or
// nil, nil when the cluster is healed.
func (t *Topology) Partition() (a, b []Node) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.sideA), slices.Clone(t.sideB)
}
