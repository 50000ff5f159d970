package checker

import (
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/attest/internal/history"
)

// Verdict is the outcome of checking one sub-history or a whole run.
type Verdict string

const (
	// Valid: some linearization explains the history.
	Valid Verdict = "valid"
	// Invalid: the search exhausted every interpretation and found none.
	Invalid Verdict = "invalid"
	// Unknown: the time budget ran out before the search finished.
	Unknown Verdict = "unknown"
)

// KeyResult is the verdict for one key's sub-history.
type KeyResult struct {
	Key     int
	Verdict Verdict
	// Witness holds a minimal inconsistent subsequence when the verdict
	// is Invalid: the invoke/completion pairs that cannot be explained.
	Witness []history.Op
}

// Result aggregates per-key verdicts. The aggregate is Valid only when
// every key is Valid; any Invalid key makes it Invalid; otherwise Unknown.
type Result struct {
	Verdict Verdict
	Keys    []KeyResult
}

// Options bound the satisfiability search.
type Options struct {
	// Budget is the wall-clock limit per key. Zero means DefaultBudget.
	Budget time.Duration
	// MaxInfoOps caps how many indeterminate operations per key are
	// enumerated exhaustively. Beyond the cap only the two extreme
	// interpretations are tried and an unresolved key reports Unknown.
	MaxInfoOps int
}

const (
	DefaultBudget     = 10 * time.Second
	DefaultMaxInfoOps = 20
)

// Check splits the history by key and decides, independently per key,
// whether the sub-history is explainable by some linearization against the
// CAS-register model.
func Check(ops []history.Op, opts Options) Result {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.MaxInfoOps <= 0 {
		opts.MaxInfoOps = DefaultMaxInfoOps
	}

	model := RegisterModel()
	keyed := history.PerKey(ops)
	keys := make([]int, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	results := make([]KeyResult, len(keys))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			results[i] = checkKey(model, k, keyed[k], opts)
			return nil
		})
	}
	_ = g.Wait()

	agg := Valid
	for _, r := range results {
		switch r.Verdict {
		case Invalid:
			agg = Invalid
		case Unknown:
			if agg != Invalid {
				agg = Unknown
			}
		}
	}
	return Result{Verdict: agg, Keys: results}
}

// checkKey decides one key's sub-history and, when it is invalid, shrinks
// a witness within whatever budget remains.
func checkKey(model Model, key int, ops []history.Op, opts Options) KeyResult {
	deadline := time.Now().Add(opts.Budget)

	required, ambiguous := pairOps(ops)
	verdict := decide(model, required, ambiguous, opts.MaxInfoOps, deadline)
	res := KeyResult{Key: key, Verdict: verdict}
	if verdict == Invalid {
		res.Witness = minimizeWitness(model, required, ambiguous, opts.MaxInfoOps, deadline)
	}
	return res
}

// pairOps matches invocations with completions and splits the operations
// into those that definitely happened (ok) and those whose effect is
// indeterminate (info completions and dangling invocations). Definite
// failures never happened and are excluded entirely, as are indeterminate
// reads: a read has no effect, and an unobserved result constrains
// nothing.
func pairOps(ops []history.Op) (required, ambiguous []pairedOp) {
	pending := make(map[int]history.Op)
	for _, op := range ops {
		if op.Type == history.Invoke {
			pending[op.Process] = op
			continue
		}
		inv, open := pending[op.Process]
		if !open {
			continue
		}
		delete(pending, op.Process)

		p := pairedOp{
			inv:  inv,
			out:  Outcome{Type: op.Type, Value: op.Value},
			call: inv.Index,
			ret:  op.Index,
		}
		switch op.Type {
		case history.OK:
			required = append(required, p)
		case history.Info:
			if inv.Func != history.FuncRead {
				p.ret = maxTime
				ambiguous = append(ambiguous, p)
			}
		}
	}
	// Dangling invocations are indeterminate too
	for _, inv := range pending {
		if inv.Func == history.FuncRead {
			continue
		}
		ambiguous = append(ambiguous, pairedOp{
			inv:  inv,
			out:  Outcome{Type: history.Info},
			call: inv.Index,
			ret:  maxTime,
		})
	}
	return required, ambiguous
}

// decide searches for any legalizing interpretation: each indeterminate
// operation either never executed (dropped) or took effect (included with
// its interval extended to the end of history). An included cas still
// steps through the register model, so it only ever applies new when the
// state matched old.
func decide(model Model, required, ambiguous []pairedOp, maxInfoOps int, deadline time.Time) Verdict {
	masks := interpretationMasks(len(ambiguous), maxInfoOps)
	capped := len(ambiguous) > maxInfoOps

	sawDeadline := false
	for _, mask := range masks {
		candidate := make([]pairedOp, len(required), len(required)+len(ambiguous))
		copy(candidate, required)
		for i, amb := range ambiguous {
			if mask&(1<<uint(i)) != 0 {
				candidate = append(candidate, amb)
			}
		}
		switch searchLinearization(model, candidate, deadline) {
		case searchOK:
			return Valid
		case searchDeadline:
			sawDeadline = true
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			sawDeadline = true
			break
		}
	}
	if sawDeadline || capped {
		// The search did not finish; the history might still be
		// explainable, so this must not count as a violation.
		return Unknown
	}
	return Invalid
}

// interpretationMasks enumerates which subsets of the indeterminate
// operations to try, cheapest interpretations first. Past the cap only the
// all-dropped and all-included extremes are tried.
func interpretationMasks(n, maxInfoOps int) []uint64 {
	if n == 0 {
		return []uint64{0}
	}
	if n > maxInfoOps {
		return []uint64{0, 1<<uint(n) - 1}
	}
	masks := make([]uint64, 0, 1<<uint(n))
	for m := uint64(0); m < 1<<uint(n); m++ {
		masks = append(masks, m)
	}
	sort.Slice(masks, func(i, j int) bool {
		pi, pj := popcount(masks[i]), popcount(masks[j])
		if pi != pj {
			return pi < pj
		}
		return masks[i] < masks[j]
	})
	return masks
}

func popcount(v uint64) int {
	n := 0
	for ; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// minimizeWitness shrinks an invalid sub-history to the smallest
// inconsistent real-time prefix. Linearizability is prefix-closed, so the
// shortest prefix with no legal linearization is found by binary search
// over completion order; everything past the operation that made the
// history inexplicable is cut away. Best effort: if the budget runs out
// the current candidate is returned.
func minimizeWitness(model Model, required, ambiguous []pairedOp, maxInfoOps int, deadline time.Time) []history.Op {
	all := make([]pairedOp, 0, len(required)+len(ambiguous))
	all = append(all, required...)
	all = append(all, ambiguous...)
	sort.Slice(all, func(i, j int) bool { return all[i].ret < all[j].ret })

	invalidAt := func(ops []pairedOp) bool {
		var req, amb []pairedOp
		for _, op := range ops {
			if op.out.Type == history.OK {
				req = append(req, op)
			} else {
				amb = append(amb, op)
			}
		}
		return decide(model, req, amb, maxInfoOps, deadline) == Invalid
	}

	// prefixAt cuts the history at the k-th completion: everything that
	// completed by then plus indeterminate ops already invoked.
	prefixAt := func(k int) []pairedOp {
		cutoff := all[k-1].ret
		var out []pairedOp
		for _, op := range all {
			if op.ret <= cutoff || (op.ret == maxTime && op.call <= cutoff) {
				out = append(out, op)
			}
		}
		return out
	}

	lo, hi := 1, len(all)
	for lo < hi {
		mid := (lo + hi) / 2
		if time.Now().After(deadline) {
			break
		}
		if invalidAt(prefixAt(mid)) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return flattenWitness(prefixAt(lo))
}

// flattenWitness turns paired operations back into history ops, invocation
// and completion per operation, in recorded order.
func flattenWitness(ops []pairedOp) []history.Op {
	var out []history.Op
	for _, op := range ops {
		out = append(out, op.inv)
		done := op.inv
		done.Type = op.out.Type
		done.Value = op.out.Value
		if op.ret != maxTime {
			done.Index = op.ret
		}
		out = append(out, done)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
