// Package control wires the harness together: it owns a run from cluster
// setup through workload and fault injection to checking and reporting.
//
// A run drives key_count independent keys, each probed by workers_per_key
// worker processes sharing that key's operation budget, while the fault
// scheduler partitions and heals the cluster on its own clock. When every
// budget is spent (or the run's time limit fires) the recorded history is
// validated, persisted, checked for linearizability, and rendered into
// the report artifacts.
package control
