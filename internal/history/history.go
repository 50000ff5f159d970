package history

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Func names the operation a process performed.
type Func string

const (
	FuncRead  Func = "read"
	FuncWrite Func = "write"
	FuncCAS   Func = "cas"

	// Fault events recorded by the nemesis under NemesisProcess.
	FuncStartPartition Func = "start-partition"
	FuncStopPartition  Func = "stop-partition"
)

// OpType distinguishes invocations from the three terminal completions.
type OpType string

const (
	Invoke OpType = "invoke"
	// OK: the operation definitely took effect as described.
	OK OpType = "ok"
	// Fail: the operation definitely did not change state.
	Fail OpType = "fail"
	// Info: indeterminate; the operation may or may not have taken effect.
	Info OpType = "info"
)

// NemesisProcess is the reserved process id fault events are recorded under.
const NemesisProcess = -1

// Op is one history entry. A client operation appears twice: once as an
// invocation and once as its terminal completion, both from the same
// process. Value carries a write's argument or a read completion's observed
// value (nil when the key was absent); Old/New carry a cas's expected and
// desired values.
type Op struct {
	Process int    `json:"process"`
	Func    Func   `json:"f"`
	Key     int    `json:"key"`
	Value   *int   `json:"value,omitempty"`
	Old     *int   `json:"old,omitempty"`
	New     *int   `json:"new,omitempty"`
	Type    OpType `json:"type"`
	Index   int64  `json:"index"`
	Time    int64  `json:"time"` // nanoseconds since the run started
}

// IsClientOp reports whether the op belongs to a client process rather
// than the nemesis.
func (o Op) IsClientOp() bool {
	return o.Process != NemesisProcess
}

// Terminal reports whether the op is a completion.
func (o Op) Terminal() bool {
	return o.Type == OK || o.Type == Fail || o.Type == Info
}

// Int is a convenience for building optional operation values.
func Int(v int) *int { return &v }

// Read builds a read invocation template for key.
func Read(key int) Op {
	return Op{Func: FuncRead, Key: key}
}

// Write builds a write invocation template for key.
func Write(key, v int) Op {
	return Op{Func: FuncWrite, Key: key, Value: Int(v)}
}

// CAS builds a compare-and-swap invocation template for key.
func CAS(key, old, new int) Op {
	return Op{Func: FuncCAS, Key: key, Old: Int(old), New: Int(new)}
}

// Recorder is the append-only history log. Appends are atomic: each op is
// stamped with a monotonically increasing index and a timestamp relative to
// the recorder's start, so the checker can use recorded order and real-time
// intervals as ground truth.
type Recorder struct {
	mu    sync.Mutex
	ops   []Op
	index int64
	start time.Time
}

// NewRecorder creates an empty recorder; timestamps are relative to now.
func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// Append stamps op with the next index and the current time and records it.
// It returns the stamped op.
func (r *Recorder) Append(op Op) Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	op.Index = r.index
	op.Time = time.Since(r.start).Nanoseconds()
	r.index++
	r.ops = append(r.ops, op)
	return op
}

// Invoke records op as an invocation for process and returns the stamped op.
func (r *Recorder) Invoke(process int, op Op) Op {
	op.Process = process
	op.Type = Invoke
	return r.Append(op)
}

// Complete records the terminal completion of a previously recorded
// invocation. The caller supplies the invocation (for process/func/key
// identity), the outcome type, and the completion's observed value.
func (r *Recorder) Complete(inv Op, outcome OpType, value *int) Op {
	op := inv
	op.Type = outcome
	op.Value = value
	if inv.Func == FuncWrite || inv.Func == FuncCAS {
		// Mutations keep their arguments on the completion as well so a
		// history is interpretable without chasing the invocation.
		op.Value = inv.Value
	}
	return r.Append(op)
}

// Ops returns a copy of the recorded history in append order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Len returns the number of recorded ops.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// PerKey splits the client portion of a history by key. Nemesis events are
// excluded; keys never interact, so each sub-history is independently
// checkable.
func PerKey(ops []Op) map[int][]Op {
	keyed := make(map[int][]Op)
	for _, op := range ops {
		if !op.IsClientOp() {
			continue
		}
		keyed[op.Key] = append(keyed[op.Key], op)
	}
	return keyed
}

// NemesisOps returns only the fault events from a history, in order.
func NemesisOps(ops []Op) []Op {
	var out []Op
	for _, op := range ops {
		if op.Process == NemesisProcess {
			out = append(out, op)
		}
	}
	return out
}

// ErrMalformedHistory is returned by Validate when the per-process
// alternation invariant is broken.
var ErrMalformedHistory = errors.New("malformed history")

// Validate checks the per-process alternation invariant: every client
// invocation is followed by exactly one terminal completion from the same
// process before that process invokes again. A trailing open invocation is
// permitted (a worker may have been aborted mid-operation).
func Validate(ops []Op) error {
	open := make(map[int]bool)
	for _, op := range ops {
		if !op.IsClientOp() {
			continue
		}
		switch {
		case op.Type == Invoke:
			if open[op.Process] {
				return fmt.Errorf("%w: process %d invoked %s while an operation was outstanding (index %d)",
					ErrMalformedHistory, op.Process, op.Func, op.Index)
			}
			open[op.Process] = true
		case op.Terminal():
			if !open[op.Process] {
				return fmt.Errorf("%w: process %d completed %s with no outstanding invocation (index %d)",
					ErrMalformedHistory, op.Process, op.Func, op.Index)
			}
			open[op.Process] = false
		default:
			return fmt.Errorf("%w: op at index %d has unknown type %q", ErrMalformedHistory, op.Index, op.Type)
		}
	}
	return nil
}
