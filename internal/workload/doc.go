// Package workload generates the randomized register operation mix the
// harness drives at the cluster: per key, a bounded stream of reads,
// writes and compare-and-swaps with small arguments, shared by that
// key's worker processes and paced by a common rate limiter plus
// per-worker jitter.
//
// Small keyspace and value range are deliberate. Contention is what
// makes linearizability violations observable: five workers hammering
// one key with five possible values produce overlapping intervals and
// frequent cas conflicts, which is exactly the regime where a broken
// store slips up.
package workload
