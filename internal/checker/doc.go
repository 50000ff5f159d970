// Package checker decides whether a recorded operation history is
// consistent with a linearizable compare-and-swap register.
//
// # Model
//
// Each key is an independent register. The history is split per key and
// every sub-history is checked on its own: the checker looks for a total
// order of the operations that definitely happened, consistent with each
// operation's real-time invocation/completion interval, under which every
// read observes the register's current value and every cas outcome matches
// its precondition.
//
// # Indeterminate operations
//
// Completions recorded as info (timed-out writes and cas, and invocations
// whose worker was aborted mid-flight) may or may not have taken effect.
// The checker searches interpretations: each such operation is either
// dropped (it never executed) or included with its interval extended to
// the end of the history (it executed at some unknown point after its
// invocation). An included cas still steps through the register model, so
// it only counts as applied where the state actually matched its expected
// value. A history is valid when any interpretation admits a legal
// linearization, so indeterminate outcomes alone can never produce an
// Invalid verdict.
//
// # Verdicts and budget
//
// The search is exponential in the worst case. Each key gets a wall-clock
// budget; exhausting it yields Unknown, which is reported separately from
// both Valid (fully verified) and Invalid (a violation was proven). An
// Invalid key carries a minimal witness: a small subsequence of operations
// that cannot be explained, found by shrinking the smallest invalid
// real-time prefix.
package checker
