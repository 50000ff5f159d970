package checker

import "github.com/dreamware/attest/internal/history"

// State is the abstract state of one CAS register: its current value, or
// unwritten before any successful write.
type State struct {
	Written bool
	Value   int
}

// Outcome is the completion side of an operation as the model sees it.
// Value carries a read's observed value (nil when the key was absent).
type Outcome struct {
	Type  history.OpType
	Value *int
}

// Model is the abstract state machine a sub-history is checked against.
// Step reports whether applying the invocation/outcome pair in state s is
// legal and, if so, the resulting state. Step must not mutate s.
type Model struct {
	Init  func() State
	Step  func(s State, inv history.Op, out Outcome) (bool, State)
	Equal func(a, b State) bool
}

// RegisterModel returns the model for a single compare-and-swap register:
//
//   - read is legal only when it observes the current state, including a
//     nil observation while the register is unwritten
//   - write always succeeds and replaces the state
//   - cas(old, new) linearizes as an effect only when the state equals
//     old; a cas recorded as a definite fail never reaches Step because it
//     provably did not execute
func RegisterModel() Model {
	return Model{
		Init: func() State {
			return State{}
		},
		Step: func(s State, inv history.Op, out Outcome) (bool, State) {
			switch inv.Func {
			case history.FuncRead:
				if out.Value == nil {
					return !s.Written, s
				}
				return s.Written && s.Value == *out.Value, s
			case history.FuncWrite:
				return true, State{Written: true, Value: *inv.Value}
			case history.FuncCAS:
				if s.Written && s.Value == *inv.Old {
					return true, State{Written: true, Value: *inv.New}
				}
				return false, s
			default:
				return false, s
			}
		},
		Equal: func(a, b State) bool {
			return a == b
		},
	}
}
