// Package cluster describes the cluster under test: node identity, the
// fixed peer/client endpoint conventions, the bootstrap string nodes are
// started with, and the shared mutable view of the node set and current
// partition state.
//
// # Address resolution
//
// Nodes are identified by hostname. PeerURL, ClientURL and InitialCluster
// are pure functions from node names to endpoints:
//
//	cluster.PeerURL("n1")                     // http://n1:2380
//	cluster.ClientURL("n1")                   // http://n1:2379
//	cluster.InitialCluster([]Node{"n1","n2"}) // n1=http://n1:2380,n2=http://n2:2380
//
// # Topology
//
// Topology owns the two pieces of mutable cluster state the harness shares:
// the live node set and the current partition, if any. The fault scheduler
// is the only writer; workload code only ever reads snapshots. This keeps
// partition bookkeeping out of the hot path and makes the "heal before
// exit" guarantee checkable (Partitioned must be false after a run).
package cluster
