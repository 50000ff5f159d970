package checker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/attest/internal/history"
)

// hist builds a history with indexes assigned in declaration order, the
// way the recorder would have stamped them.
func hist(ops ...history.Op) []history.Op {
	for i := range ops {
		ops[i].Index = int64(i)
		ops[i].Time = int64(i)
	}
	return ops
}

func inv(proc int, op history.Op) history.Op {
	op.Process = proc
	op.Type = history.Invoke
	return op
}

func done(proc int, op history.Op, typ history.OpType, value *int) history.Op {
	op.Process = proc
	op.Type = typ
	if op.Func == history.FuncRead {
		op.Value = value
	}
	return op
}

// TestRegisterModel tests the register state machine in isolation
func TestRegisterModel(t *testing.T) {
	m := RegisterModel()

	t.Run("read nil legal only while unwritten", func(t *testing.T) {
		ok, _ := m.Step(State{}, history.Read(0), Outcome{Type: history.OK})
		assert.True(t, ok)

		ok, _ = m.Step(State{Written: true, Value: 2}, history.Read(0), Outcome{Type: history.OK})
		assert.False(t, ok)
	})

	t.Run("read observes current value", func(t *testing.T) {
		s := State{Written: true, Value: 3}
		ok, next := m.Step(s, history.Read(0), Outcome{Type: history.OK, Value: history.Int(3)})
		assert.True(t, ok)
		assert.Equal(t, s, next)

		ok, _ = m.Step(s, history.Read(0), Outcome{Type: history.OK, Value: history.Int(4)})
		assert.False(t, ok)
	})

	t.Run("write always applies", func(t *testing.T) {
		ok, next := m.Step(State{}, history.Write(0, 4), Outcome{Type: history.OK})
		assert.True(t, ok)
		assert.Equal(t, State{Written: true, Value: 4}, next)
	})

	t.Run("cas requires matching state", func(t *testing.T) {
		ok, next := m.Step(State{Written: true, Value: 1}, history.CAS(0, 1, 2), Outcome{Type: history.OK})
		assert.True(t, ok)
		assert.Equal(t, State{Written: true, Value: 2}, next)

		ok, _ = m.Step(State{Written: true, Value: 3}, history.CAS(0, 1, 2), Outcome{Type: history.OK})
		assert.False(t, ok)

		ok, _ = m.Step(State{}, history.CAS(0, 1, 2), Outcome{Type: history.OK})
		assert.False(t, ok)
	})
}

// TestSequentialHistories tests clean non-overlapping histories
func TestSequentialHistories(t *testing.T) {
	t.Run("valid sequential history", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 3)),
			done(0, history.Write(0, 3), history.OK, nil),
			inv(1, history.Read(0)),
			done(1, history.Read(0), history.OK, history.Int(3)),
			inv(0, history.CAS(0, 3, 1)),
			done(0, history.CAS(0, 3, 1), history.OK, nil),
			inv(1, history.Read(0)),
			done(1, history.Read(0), history.OK, history.Int(1)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
		require.Len(t, res.Keys, 1)
		assert.Equal(t, Valid, res.Keys[0].Verdict)
		assert.Empty(t, res.Keys[0].Witness)
	})

	t.Run("stale read is invalid with witness", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 3)),
			done(0, history.Write(0, 3), history.OK, nil),
			inv(1, history.Read(0)),
			done(1, history.Read(0), history.OK, history.Int(4)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Invalid, res.Verdict)
		require.Len(t, res.Keys, 1)
		require.Equal(t, Invalid, res.Keys[0].Verdict)

		// The witness must include both the write and the offending read
		witness := res.Keys[0].Witness
		funcs := make(map[history.Func]bool)
		for _, op := range witness {
			funcs[op.Func] = true
		}
		assert.True(t, funcs[history.FuncWrite], "witness should contain the write")
		assert.True(t, funcs[history.FuncRead], "witness should contain the read")
	})

	t.Run("definite cas fail is a no-op", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.OK, nil),
			inv(1, history.CAS(0, 3, 4)),
			done(1, history.CAS(0, 3, 4), history.Fail, nil),
			inv(0, history.Read(0)),
			done(0, history.Read(0), history.OK, history.Int(1)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})

	t.Run("empty history is valid", func(t *testing.T) {
		res := Check(nil, Options{})
		assert.Equal(t, Valid, res.Verdict)
		assert.Empty(t, res.Keys)
	})
}

// TestConcurrentHistories tests real-time overlap semantics
func TestConcurrentHistories(t *testing.T) {
	t.Run("overlapping writes may reorder", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 1)),
			inv(1, history.Write(0, 2)),
			done(0, history.Write(0, 1), history.OK, nil),
			done(1, history.Write(0, 2), history.OK, nil),
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(1)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})

	t.Run("non-overlapping writes may not reorder", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.OK, nil),
			inv(1, history.Write(0, 2)),
			done(1, history.Write(0, 2), history.OK, nil),
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(1)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Invalid, res.Verdict)
	})
}

// TestIndeterminateOutcomes tests the info interpretation search
func TestIndeterminateOutcomes(t *testing.T) {
	t.Run("info mutations alone never invalidate", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.Info, nil),
			inv(1, history.CAS(0, 1, 2)),
			done(1, history.CAS(0, 1, 2), history.Info, nil),
			inv(2, history.Write(0, 3)),
			done(2, history.Write(0, 3), history.Info, nil),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})

	t.Run("info write explains a later read", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 3)),
			done(0, history.Write(0, 3), history.OK, nil),
			inv(1, history.Write(0, 4)),
			done(1, history.Write(0, 4), history.Info, nil),
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(4)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})

	t.Run("info cas applies only when precondition matched", func(t *testing.T) {
		// cas(1,2) timed out while the register held 1: the read of 2 is
		// explainable by the cas having applied
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.OK, nil),
			inv(1, history.CAS(0, 1, 2)),
			done(1, history.CAS(0, 1, 2), history.Info, nil),
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(2)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})

	t.Run("info cas may not apply unconditionally", func(t *testing.T) {
		// cas(3,4) timed out while the register held 1: a read of 4 is
		// inexplicable because the precondition never held
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.OK, nil),
			inv(1, history.CAS(0, 3, 4)),
			done(1, history.CAS(0, 3, 4), history.Info, nil),
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(4)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Invalid, res.Verdict)
	})

	t.Run("dangling invocation is indeterminate", func(t *testing.T) {
		h := hist(
			inv(0, history.Write(0, 1)),
			done(0, history.Write(0, 1), history.OK, nil),
			inv(1, history.Write(0, 2)), // worker aborted, no completion
			inv(2, history.Read(0)),
			done(2, history.Read(0), history.OK, history.Int(2)),
		)
		res := Check(h, Options{})
		assert.Equal(t, Valid, res.Verdict)
	})
}

// TestBudget tests that exhausting the budget reports Unknown, not Invalid
func TestBudget(t *testing.T) {
	// The all-dropped interpretation is invalid, so with an expired
	// budget the checker must stop before proving anything either way
	h := hist(
		inv(0, history.Write(0, 3)),
		done(0, history.Write(0, 3), history.OK, nil),
		inv(1, history.Write(0, 4)),
		done(1, history.Write(0, 4), history.Info, nil),
		inv(2, history.Read(0)),
		done(2, history.Read(0), history.OK, history.Int(4)),
	)

	res := Check(h, Options{Budget: time.Nanosecond})
	assert.Equal(t, Unknown, res.Verdict)

	res = Check(h, Options{Budget: 30 * time.Second})
	assert.Equal(t, Valid, res.Verdict)
}

// TestAggregation tests per-key independence and verdict aggregation
func TestAggregation(t *testing.T) {
	h := hist(
		// key 0: fine
		inv(0, history.Write(0, 1)),
		done(0, history.Write(0, 1), history.OK, nil),
		inv(1, history.Read(0)),
		done(1, history.Read(0), history.OK, history.Int(1)),
		// key 1: stale read
		inv(2, history.Write(1, 2)),
		done(2, history.Write(1, 2), history.OK, nil),
		inv(3, history.Read(1)),
		done(3, history.Read(1), history.OK, history.Int(3)),
	)
	res := Check(h, Options{})
	assert.Equal(t, Invalid, res.Verdict)
	require.Len(t, res.Keys, 2)
	assert.Equal(t, Valid, res.Keys[0].Verdict)
	assert.Equal(t, Invalid, res.Keys[1].Verdict)
	assert.NotEmpty(t, res.Keys[1].Witness)
}
