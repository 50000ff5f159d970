// Package nemesis schedules faults against the cluster while the
// workload runs: wait, split the nodes into two random halves, wait,
// heal, repeating until the run ends.
//
// The scheduler owns the cluster's partition state through the shared
// Topology and records every transition into the history, so reports can
// line anomalies up with the fault windows. It promises to attempt a
// heal before returning no matter how the run ends; actual packet
// dropping is delegated to a Partitioner, either a test fake or
// ExecPartitioner shelling out to operator scripts.
package nemesis
