// Package report renders a run's results: the plain-text summary with
// per-key verdicts, witnesses and latency/throughput stats, and an HTML
// timeline showing every operation interval per key with the partition
// windows shaded. Pure presentation; everything is computed from the
// recorded history and the checker's result.
package report
