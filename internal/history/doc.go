// Package history is the operation data model shared by every part of
// the harness: workers record invocations and completions, the fault
// scheduler records partition transitions, and the checker and report
// consume the resulting sequence.
//
// # Shape
//
// A history is a flat, append-ordered slice of Op. Each client operation
// appears twice, as an invoke and later as a completion (ok, fail or
// info); a worker that died mid-flight leaves a dangling invoke. The
// Recorder assigns each appended Op a strictly increasing index, which
// the checker uses as the operation's interval endpoint, so two distinct
// events never share a timestamp.
//
// # Invariant
//
// Within one process the sequence strictly alternates invoke, completion,
// invoke, completion. Validate checks this; a trailing open invoke per
// process is legal. Nemesis events live under the reserved NemesisProcess
// id and are excluded from per-key sub-histories.
package history
